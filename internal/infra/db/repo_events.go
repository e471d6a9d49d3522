package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vigil/internal/domain"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Insert(ctx context.Context, event domain.Event) (domain.Event, error) {
	if r.db == nil {
		return domain.Event{}, errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	model := EventModel{
		ID:          event.ID,
		Kind:        event.Kind,
		SessionID:   event.SessionID,
		Message:     event.Message,
		PayloadJSON: payloadJSON,
		CreatedAt:   event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// ListByKind returns up to limit events, most recent first. Empty kind
// matches every event.
func (r *EventRepository) ListByKind(ctx context.Context, kind string, limit int) ([]domain.Event, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var models []EventModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(models))
	for _, m := range models {
		var payload map[string]any
		if len(m.PayloadJSON) > 0 {
			if err := json.Unmarshal(m.PayloadJSON, &payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload for event %s: %w", m.ID, err)
			}
		}
		if payload == nil {
			payload = map[string]any{}
		}
		out = append(out, domain.Event{
			ID:        m.ID,
			Kind:      m.Kind,
			SessionID: m.SessionID,
			Message:   m.Message,
			Payload:   payload,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
