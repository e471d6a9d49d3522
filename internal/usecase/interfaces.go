package usecase

import (
	"context"
	"time"

	"vigil/internal/domain"
)

// ArtifactStore persists a generated artifact and returns its URL.
type ArtifactStore interface {
	Save(ctx context.Context, art domain.Artifact) (string, error)
}

// ReferenceStore resolves the fixed reference artifact.
type ReferenceStore interface {
	Enabled() bool
	Default() (domain.Artifact, error)
}

// ImageRepository persists image records, best-effort from the pipeline.
type ImageRepository interface {
	Insert(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error)
}

// PolicyEngine evaluates the prompt admission policy.
type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

// MetricsRegistry is the subset of the metrics surface the pipeline writes.
type MetricsRegistry interface {
	Increment(name string)
	SetGauge(name string, value float64)
	BucketIncrement(name string, ts time.Time)
}

// PulseRecorder feeds request outcomes into the failure-rate monitor.
type PulseRecorder interface {
	RecordOutcome(scope string, failure bool, ts time.Time) bool
}
