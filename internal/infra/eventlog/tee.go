package eventlog

import (
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
)

// Tee appends every event to a primary log and hands a copy to a sink,
// best-effort. Queries read from the primary only. It is how events are
// mirrored to the database without making persistence load-bearing.
type Tee struct {
	primary domain.EventLog
	sink    func(domain.Event)
}

func NewTee(primary domain.EventLog, sink func(domain.Event)) *Tee {
	return &Tee{primary: primary, sink: sink}
}

// Append assigns ID and timestamp when unset, then fans out. Enriching here
// means primary and sink record the same identity, so a mirrored row can be
// correlated back to the in-memory event.
func (t *Tee) Append(event domain.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	t.primary.Append(event)
	if t.sink != nil {
		t.sink(event)
	}
}

func (t *Tee) Query(kind string, limit int) []domain.Event {
	return t.primary.Query(kind, limit)
}
