package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// GenerationRequest is immutable once created; providers receive it by value.
type GenerationRequest struct {
	SessionID string
	Prompt    string
	Size      string
	Params    map[string]string
}

// PromptHash is the short digest attached to generation metadata, so events
// can be grouped by prompt without storing the prompt text itself.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

// Artifact is the output of a successful provider call. Data holds the raw
// encoded image; URL points at wherever the artifact was persisted.
type Artifact struct {
	ID        string
	Data      []byte
	MIMEType  string
	URL       string
	CreatedAt time.Time
}

// ProviderFailure records one failed attempt in chain order.
type ProviderFailure struct {
	Provider string
	Reason   string
	Err      error
}

// GenerationOutcome is the result of routing one request across the chain.
// On success Provider names the provider that produced Artifact and Failures
// holds the attempts that preceded it. On exhaustion OK is false, Provider
// is empty and Failures holds one entry per chain member.
type GenerationOutcome struct {
	OK       bool
	Provider string
	Artifact *Artifact
	Failures []ProviderFailure
	Latency  time.Duration
}

// ImageProvider is the capability every backend variant implements. Generate
// must honor ctx cancellation; the router abandons attempts on deadline.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (Artifact, error)
}

// ImageRecord is the persisted row for a generated artifact, drift metadata
// included regardless of breach status.
type ImageRecord struct {
	ID            string
	SessionID     string
	Prompt        string
	Provider      string
	URL           string
	ReferenceUsed bool
	ReferenceID   string
	DriftScore    *float64
	DriftMethod   string
	DriftBreached bool
	CreatedAt     time.Time
}
