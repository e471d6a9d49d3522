package usecase

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/domain"
	"vigil/internal/infra/drift"
)

// DriftScorer compares a generated artifact against the fixed reference and
// publishes breaches. Scoring never fails a request: every failure path
// degrades to an undefined score.
type DriftScorer struct {
	strategies []drift.Strategy
	threshold  float64
	metrics    MetricsRegistry
	events     domain.EventLog
	clock      func() time.Time
}

func NewDriftScorer(strategies []drift.Strategy, threshold float64, m MetricsRegistry, events domain.EventLog) *DriftScorer {
	return &DriftScorer{
		strategies: strategies,
		threshold:  threshold,
		metrics:    m,
		events:     events,
		clock:      time.Now,
	}
}

// Score runs the preferred strategy, or walks the fixed cascade when the
// preference is automatic. An explicit preference never falls through: if
// that one strategy is unavailable or errors, the score is undefined.
func (s *DriftScorer) Score(ctx context.Context, sessionID string, candidate, ref domain.Artifact, preference domain.DriftMethod) domain.DriftScore {
	undefined := domain.DriftScore{Method: domain.DriftMethodNone, ReferenceID: ref.ID}

	if preference == "" {
		preference = domain.DriftMethodAuto
	}

	if preference == domain.DriftMethodAuto {
		for _, strategy := range s.strategies {
			if !strategy.Available() {
				continue
			}
			value, err := strategy.Score(ctx, candidate, ref)
			if err != nil {
				continue
			}
			return s.finish(sessionID, strategy.Method(), value, ref.ID)
		}
		return undefined
	}

	for _, strategy := range s.strategies {
		if strategy.Method() != preference {
			continue
		}
		if !strategy.Available() {
			return undefined
		}
		value, err := strategy.Score(ctx, candidate, ref)
		if err != nil {
			return undefined
		}
		return s.finish(sessionID, strategy.Method(), value, ref.ID)
	}
	return undefined
}

// finish assembles the score and, on breach, publishes the detection event,
// the operator alert event, and the counter increment as one unit.
func (s *DriftScorer) finish(sessionID string, method domain.DriftMethod, value float64, refID string) domain.DriftScore {
	score := domain.DriftScore{
		Defined:     true,
		Value:       value,
		Method:      method,
		Breached:    value > s.threshold,
		ReferenceID: refID,
	}
	if s.metrics != nil {
		s.metrics.SetGauge("drift.last_score", value)
	}
	if !score.Breached {
		return score
	}

	payload := map[string]any{
		"score":        value,
		"threshold":    s.threshold,
		"method":       string(method),
		"reference_id": refID,
	}
	message := fmt.Sprintf("drift %.3f over threshold %.3f via %s", value, s.threshold, method)
	if s.events != nil {
		s.events.Append(domain.Event{
			Kind:      domain.EventDriftDetected,
			SessionID: sessionID,
			Message:   message,
			Payload:   payload,
		})
		s.events.Append(domain.Event{
			Kind:      domain.EventDriftAlert,
			SessionID: sessionID,
			Message:   message,
			Payload:   payload,
		})
	}
	if s.metrics != nil {
		s.metrics.Increment("drift.detected")
	}
	return score
}
