// Package eventlog is the in-process append-only event stream. Insertion
// order is the log's total order; events are never mutated or removed.
package eventlog

import (
	"sync"
	"time"

	"vigil/internal/domain"

	"github.com/google/uuid"
)

type Log struct {
	mu     sync.RWMutex
	events []domain.Event
	clock  func() time.Time
}

func New() *Log {
	return NewWithClock(nil)
}

func NewWithClock(clock func() time.Time) *Log {
	if clock == nil {
		clock = time.Now
	}
	return &Log{clock: clock}
}

// Append adds an event at the tail, assigning ID and timestamp when unset.
func (l *Log) Append(event domain.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.clock().UTC()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

// Query returns at most limit events, most-recent-first, filtered by kind
// when kind is non-empty. It is a pure read; each call restarts from the
// current tail.
func (l *Log) Query(kind string, limit int) []domain.Event {
	if limit <= 0 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Event, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && l.events[i].Kind != kind {
			continue
		}
		out = append(out, l.events[i])
	}
	return out
}

// Len reports the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
