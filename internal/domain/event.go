package domain

import "time"

// Event kinds published by the core. The event log is the sole channel
// through which the drift scorer and pulse monitor expose state changes.
const (
	EventGenerateOK    = "generate.ok"
	EventGenerateFail  = "generate.fail"
	EventDriftDetected = "drift.detected"
	EventDriftAlert    = "drift.alert"
	EventPulseAlert    = "pulse.alert"
	EventPolicyDenied  = "policy.denied"
)

// Event is append-only: once logged it is never mutated or removed.
type Event struct {
	ID        string
	Kind      string
	SessionID string
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
}

// EventLog is the append-only structured event stream. Query returns at most
// limit events, most-recent-first, filtered by kind when kind is non-empty;
// it is a pure read.
type EventLog interface {
	Append(event Event)
	Query(kind string, limit int) []Event
}
