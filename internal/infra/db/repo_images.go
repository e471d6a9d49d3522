package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vigil/internal/domain"
)

type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Insert(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error) {
	if r.db == nil {
		return domain.ImageRecord{}, errDBUnavailable
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	} else {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}
	model := imageModelFromDomain(rec)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.ImageRecord{}, fmt.Errorf("insert image: %w", err)
	}
	return rec, nil
}

func (r *ImageRepository) Get(ctx context.Context, id string) (domain.ImageRecord, error) {
	if r.db == nil {
		return domain.ImageRecord{}, errDBUnavailable
	}
	var model ImageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ImageRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ImageRecord{}, err
	}
	return imageModelToDomain(model), nil
}

func (r *ImageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.ImageRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	var models []ImageModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ImageRecord, 0, len(models))
	for _, m := range models {
		out = append(out, imageModelToDomain(m))
	}
	return out, nil
}

// ListRecent returns the newest records across all sessions.
func (r *ImageRepository) ListRecent(ctx context.Context, limit int) ([]domain.ImageRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	var models []ImageModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ImageRecord, 0, len(models))
	for _, m := range models {
		out = append(out, imageModelToDomain(m))
	}
	return out, nil
}

func imageModelFromDomain(rec domain.ImageRecord) ImageModel {
	return ImageModel{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		Prompt:        rec.Prompt,
		Provider:      rec.Provider,
		URL:           rec.URL,
		ReferenceUsed: rec.ReferenceUsed,
		ReferenceID:   rec.ReferenceID,
		DriftScore:    rec.DriftScore,
		DriftMethod:   rec.DriftMethod,
		DriftBreached: rec.DriftBreached,
		CreatedAt:     rec.CreatedAt,
	}
}

func imageModelToDomain(m ImageModel) domain.ImageRecord {
	return domain.ImageRecord{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Prompt:        m.Prompt,
		Provider:      m.Provider,
		URL:           m.URL,
		ReferenceUsed: m.ReferenceUsed,
		ReferenceID:   m.ReferenceID,
		DriftScore:    m.DriftScore,
		DriftMethod:   m.DriftMethod,
		DriftBreached: m.DriftBreached,
		CreatedAt:     m.CreatedAt,
	}
}
