package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"vigil/internal/domain"
	"vigil/internal/infra/pulse"
)

// PolicyDeniedError carries the deny list back to the transport layer.
type PolicyDeniedError struct {
	Evaluation domain.PolicyEvaluation
}

func (e *PolicyDeniedError) Error() string {
	codes := make([]string, 0, len(e.Evaluation.Result.Deny))
	for _, d := range e.Evaluation.Result.Deny {
		codes = append(codes, d.Code)
	}
	return fmt.Sprintf("policy denied: %s", strings.Join(codes, ", "))
}

func (e *PolicyDeniedError) Unwrap() error { return domain.ErrPolicyDenied }

// ExhaustedError reports every failed attempt, in chain order.
type ExhaustedError struct {
	Failures []domain.ProviderFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Provider+": "+f.Reason)
	}
	return fmt.Sprintf("all providers exhausted (%s)", strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error { return domain.ErrAllProvidersExhausted }

// GenerateResult is the pipeline's answer for one admitted request.
type GenerateResult struct {
	ID            string
	Provider      string
	URL           string
	Drift         domain.DriftScore
	ReferenceUsed bool
	Failures      []domain.ProviderFailure
	Latency       time.Duration
}

type GenerateImageDeps struct {
	Router     *ProviderRouter
	Scorer     *DriftScorer
	Metrics    MetricsRegistry
	Events     domain.EventLog
	Pulse      PulseRecorder
	Artifacts  ArtifactStore
	References ReferenceStore
	Images     ImageRepository
	Policy     PolicyEngine

	DriftPreference  domain.DriftMethod
	PulsePerProvider bool
}

// GenerateImage is the request pipeline: admission, routing, persistence,
// drift scoring, then bookkeeping. Only admission and exhaustion fail the
// request; drift and persistence problems degrade.
type GenerateImage struct {
	deps GenerateImageDeps
}

func NewGenerateImage(deps GenerateImageDeps) *GenerateImage {
	return &GenerateImage{deps: deps}
}

func (g *GenerateImage) Execute(ctx context.Context, req domain.GenerationRequest) (GenerateResult, error) {
	d := g.deps
	d.Metrics.Increment("generate.requests")

	if d.Policy != nil {
		eval, err := d.Policy.Evaluate(ctx, domain.PolicyInput{
			SessionID: req.SessionID,
			Prompt:    req.Prompt,
			Params:    req.Params,
		})
		if err != nil {
			return GenerateResult{}, fmt.Errorf("policy evaluation: %w", err)
		}
		if !eval.Result.Allow {
			d.Metrics.Increment("generate.denied")
			d.Events.Append(domain.Event{
				Kind:      domain.EventPolicyDenied,
				SessionID: req.SessionID,
				Message:   "request denied by prompt admission policy",
				Payload: map[string]any{
					"deny":        eval.Result.Deny,
					"bundle_hash": eval.BundleHash,
				},
			})
			return GenerateResult{}, &PolicyDeniedError{Evaluation: eval}
		}
	}

	outcome := d.Router.Route(ctx, req)
	now := time.Now().UTC()

	for _, failure := range outcome.Failures {
		d.Metrics.Increment("generate.fail." + failure.Provider)
		if d.PulsePerProvider {
			d.Pulse.RecordOutcome(pulse.ProviderScope(failure.Provider), true, now)
		}
	}

	if !outcome.OK {
		d.Metrics.Increment("generate.exhausted")
		d.Metrics.BucketIncrement("generate.fail", now)
		d.Pulse.RecordOutcome(pulse.GlobalScope, true, now)
		d.Events.Append(domain.Event{
			Kind:      domain.EventGenerateFail,
			SessionID: req.SessionID,
			Message:   "all providers exhausted",
			Payload:   failuresPayload(outcome.Failures),
		})
		return GenerateResult{Failures: outcome.Failures, Latency: outcome.Latency},
			&ExhaustedError{Failures: outcome.Failures}
	}

	artifact := *outcome.Artifact
	url, err := d.Artifacts.Save(ctx, artifact)
	if err != nil {
		log.Printf("artifact store unavailable for %s: %v", artifact.ID, err)
	}
	artifact.URL = url

	var drift domain.DriftScore
	referenceUsed := false
	if d.References != nil && d.References.Enabled() {
		ref, err := d.References.Default()
		if err != nil {
			log.Printf("reference unavailable, skipping drift score: %v", err)
			drift = domain.DriftScore{Method: domain.DriftMethodNone}
		} else {
			referenceUsed = true
			d.Metrics.Increment("ref.used")
			drift = d.Scorer.Score(ctx, req.SessionID, artifact, ref, d.DriftPreference)
		}
	} else {
		drift = domain.DriftScore{Method: domain.DriftMethodNone}
	}

	d.Metrics.Increment("generate.ok")
	d.Metrics.Increment("generate.ok." + outcome.Provider)
	d.Metrics.BucketIncrement("generate.ok", now)
	d.Pulse.RecordOutcome(pulse.GlobalScope, false, now)
	if d.PulsePerProvider {
		d.Pulse.RecordOutcome(pulse.ProviderScope(outcome.Provider), false, now)
	}

	d.Events.Append(domain.Event{
		Kind:      domain.EventGenerateOK,
		SessionID: req.SessionID,
		Message:   fmt.Sprintf("generated via %s", outcome.Provider),
		Payload: map[string]any{
			"provider":        outcome.Provider,
			"prompt_hash":     domain.PromptHash(req.Prompt),
			"artifact_id":     artifact.ID,
			"url":             artifact.URL,
			"drift_score":     drift.ValuePtr(),
			"drift_method":    string(drift.Method),
			"reference_used":  referenceUsed,
			"failed_attempts": len(outcome.Failures),
		},
	})

	if d.Images != nil {
		_, err := d.Images.Insert(ctx, domain.ImageRecord{
			ID:            artifact.ID,
			SessionID:     req.SessionID,
			Prompt:        req.Prompt,
			Provider:      outcome.Provider,
			URL:           artifact.URL,
			ReferenceUsed: referenceUsed,
			ReferenceID:   drift.ReferenceID,
			DriftScore:    drift.ValuePtr(),
			DriftMethod:   string(drift.Method),
			DriftBreached: drift.Breached,
			CreatedAt:     now,
		})
		if err != nil {
			log.Printf("image record not persisted for %s: %v", artifact.ID, err)
		}
	}

	return GenerateResult{
		ID:            artifact.ID,
		Provider:      outcome.Provider,
		URL:           artifact.URL,
		Drift:         drift,
		ReferenceUsed: referenceUsed,
		Failures:      outcome.Failures,
		Latency:       outcome.Latency,
	}, nil
}

func failuresPayload(failures []domain.ProviderFailure) map[string]any {
	items := make([]map[string]any, 0, len(failures))
	for _, f := range failures {
		items = append(items, map[string]any{
			"provider": f.Provider,
			"reason":   f.Reason,
		})
	}
	return map[string]any{"failures": items}
}
