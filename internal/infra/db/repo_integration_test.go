//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vigil/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&ImageModel{}, &EventModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func resetDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	if err := gdb.Exec(`TRUNCATE images, events RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func TestImageRepositoryRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	repo := NewImageRepository(gdb)

	score := 0.42
	rec, err := repo.Insert(context.Background(), domain.ImageRecord{
		SessionID:     "sess-1",
		Prompt:        "a red fox",
		Provider:      "stub",
		URL:           "file:///outputs/x.png",
		ReferenceUsed: true,
		ReferenceID:   "ref-1",
		DriftScore:    &score,
		DriftMethod:   "phash",
		DriftBreached: true,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := repo.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Provider != "stub" || got.DriftScore == nil || *got.DriftScore != 0.42 || !got.DriftBreached {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestImageRepositoryListBySession(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	repo := NewImageRepository(gdb)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Insert(context.Background(), domain.ImageRecord{
			SessionID: "sess-1",
			Prompt:    "p",
			Provider:  "stub",
			URL:       "file:///x.png",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recs, err := repo.ListBySession(context.Background(), "sess-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].CreatedAt.After(recs[1].CreatedAt) {
		t.Fatal("expected most-recent-first ordering")
	}
}

func TestEventRepositoryRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)
	resetDB(t, gdb)
	repo := NewEventRepository(gdb)

	_, err := repo.Insert(context.Background(), domain.Event{
		Kind:      domain.EventDriftDetected,
		SessionID: "sess-1",
		Message:   "drift 0.5 over threshold 0.35",
		Payload:   map[string]any{"score": 0.5},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = repo.Insert(context.Background(), domain.Event{Kind: domain.EventGenerateOK})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	events, err := repo.ListByKind(context.Background(), domain.EventDriftDetected, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 drift event, got %d", len(events))
	}
	if events[0].Payload["score"] != 0.5 {
		t.Fatalf("payload mismatch: %v", events[0].Payload)
	}
}

func TestNoDBModeReturnsUnavailable(t *testing.T) {
	repo := NewImageRepository(nil)
	if _, err := repo.Insert(context.Background(), domain.ImageRecord{}); !ErrDBUnavailable(err) {
		t.Fatalf("expected db unavailable, got %v", err)
	}
	events := NewEventRepository(nil)
	if _, err := events.ListByKind(context.Background(), "", 1); !ErrDBUnavailable(err) {
		t.Fatalf("expected db unavailable, got %v", err)
	}
}
