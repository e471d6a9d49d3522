// Package pulse tracks recent request outcomes per scope over a sliding
// time window and raises an alert event when the failure rate breaches the
// configured threshold. Alerts are edge-triggered: one per breach onset.
package pulse

import (
	"fmt"
	"sync"
	"time"

	"vigil/internal/domain"
)

// GlobalScope is the scope every request outcome is recorded under.
// Per-provider scopes are added when configured.
const GlobalScope = "global"

// ProviderScope names the window tracking a single provider.
func ProviderScope(provider string) string {
	return "provider:" + provider
}

const (
	ResetCleared = "cleared"
	ResetNoop    = "noop"
)

// Counter is the slice of the metrics registry the monitor writes.
type Counter interface {
	Increment(name string)
}

type Config struct {
	Window               time.Duration
	FailureRateThreshold float64
	MinSamples           int
	Clock                func() time.Time
	Metrics              Counter
}

type entry struct {
	ts      time.Time
	failure bool
}

type window struct {
	entries []entry
	alerted bool
}

type Monitor struct {
	mu     sync.Mutex
	cfg    Config
	scopes map[string]*window
	events domain.EventLog
}

func NewMonitor(cfg Config, events domain.EventLog) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Monitor{
		cfg:    cfg,
		scopes: make(map[string]*window),
		events: events,
	}
}

// RecordOutcome appends one outcome to the scope's window and evaluates it.
// A zero ts means "now". It reports whether a new alert was raised.
func (m *Monitor) RecordOutcome(scope string, failure bool, ts time.Time) bool {
	if scope == "" {
		scope = GlobalScope
	}
	if ts.IsZero() {
		ts = m.cfg.Clock()
	}

	m.mu.Lock()
	w := m.scopes[scope]
	if w == nil {
		w = &window{}
		m.scopes[scope] = w
	}
	w.entries = append(w.entries, entry{ts: ts, failure: failure})
	raised, rate, failures, total := m.evaluateLocked(w, ts)
	m.mu.Unlock()

	if raised && m.cfg.Metrics != nil {
		m.cfg.Metrics.Increment("pulse.alerts")
	}
	if raised && m.events != nil {
		m.events.Append(domain.Event{
			Kind:    domain.EventPulseAlert,
			Message: fmt.Sprintf("failure rate %.3f over threshold %.3f in scope %s", rate, m.cfg.FailureRateThreshold, scope),
			Payload: map[string]any{
				"scope":        scope,
				"failure_rate": rate,
				"failures":     failures,
				"samples":      total,
				"threshold":    m.cfg.FailureRateThreshold,
				"window_secs":  int(m.cfg.Window.Seconds()),
			},
		})
	}
	return raised
}

// evaluateLocked recomputes the rate and maintains the per-scope latch.
// A breach raises at most once until the rate drops back below threshold or
// the monitor is reset. Only RecordOutcome may call it: the latch must never
// move on a read.
func (m *Monitor) evaluateLocked(w *window, now time.Time) (raised bool, rate float64, failures, total int) {
	rate, failures, total = m.observeLocked(w, now)

	breached := rate > m.cfg.FailureRateThreshold && total >= m.cfg.MinSamples
	switch {
	case breached && !w.alerted:
		w.alerted = true
		raised = true
	case !breached:
		w.alerted = false
	}
	return raised, rate, failures, total
}

// observeLocked evicts entries older than the window and recomputes the
// failure rate. It leaves the latch alone.
func (m *Monitor) observeLocked(w *window, now time.Time) (rate float64, failures, total int) {
	cutoff := now.Add(-m.cfg.Window)
	kept := w.entries[:0]
	for _, e := range w.entries {
		if e.ts.After(cutoff) {
			kept = append(kept, e)
		}
	}
	w.entries = kept

	total = len(w.entries)
	for _, e := range w.entries {
		if e.failure {
			failures++
		}
	}
	if total > 0 {
		rate = float64(failures) / float64(total)
	}
	return rate, failures, total
}

// FailureRate reports the current rate and sample count for a scope after
// evicting stale entries.
func (m *Monitor) FailureRate(scope string) (rate float64, samples int) {
	if scope == "" {
		scope = GlobalScope
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.scopes[scope]
	if w == nil {
		return 0, 0
	}
	rate, _, samples = m.observeLocked(w, m.cfg.Clock())
	return rate, samples
}

// Reset clears every window and latch. It is idempotent: resetting an
// already-empty monitor reports a no-op rather than an error.
func (m *Monitor) Reset() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := false
	for _, w := range m.scopes {
		if len(w.entries) > 0 || w.alerted {
			cleared = true
		}
	}
	m.scopes = make(map[string]*window)
	if cleared {
		return ResetCleared
	}
	return ResetNoop
}
