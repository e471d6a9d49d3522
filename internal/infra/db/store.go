package db

import (
	"fmt"
	"log"

	"vigil/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store owns the database handle and the repositories hanging off it.
// Without a DSN the service runs in no-db mode: the in-memory event log
// still serves queries, persistence writes become no-ops.
type Store struct {
	DB     *gorm.DB
	Images *ImageRepository
	Events *EventRepository
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{
			Images: NewImageRepository(nil),
			Events: NewEventRepository(nil),
		}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&ImageModel{}, &EventModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{
		DB:     gdb,
		Images: NewImageRepository(gdb),
		Events: NewEventRepository(gdb),
	}, nil
}

// Enabled reports whether a database connection is live.
func (s *Store) Enabled() bool { return s != nil && s.DB != nil }
