package db

import "time"

type ImageModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	SessionID     string `gorm:"index"`
	Prompt        string `gorm:"not null"`
	Provider      string `gorm:"index;not null"`
	URL           string `gorm:"not null"`
	ReferenceUsed bool   `gorm:"not null"`
	ReferenceID   string
	DriftScore    *float64
	DriftMethod   string
	DriftBreached bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"index;not null"`
}

func (ImageModel) TableName() string { return "images" }

type EventModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Kind        string `gorm:"index;not null"`
	SessionID   string `gorm:"index"`
	Message     string
	PayloadJSON []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

func (EventModel) TableName() string { return "events" }
