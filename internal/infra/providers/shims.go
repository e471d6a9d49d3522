package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
)

// OpenAIConfig and StabilityConfig gate their shims on the same environment
// surface the hosted backends would need, so wiring and outage handling can
// be proven before real calls exist.
type OpenAIConfig struct {
	APIKey       string
	SimulateDown bool
}

// OpenAIShim is a dry-run stand-in for the hosted OpenAI Images backend,
// rendering a placeholder where a real gpt-image-1 call would go.
type OpenAIShim struct {
	cfg OpenAIConfig
}

func NewOpenAIShim(cfg OpenAIConfig) *OpenAIShim { return &OpenAIShim{cfg: cfg} }

func (p *OpenAIShim) Name() string { return "openai" }

func (p *OpenAIShim) Generate(_ context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	if p.cfg.SimulateDown {
		return domain.Artifact{}, fmt.Errorf("openai simulated down: %w", domain.ErrProviderRejected)
	}
	if p.cfg.APIKey == "" {
		return domain.Artifact{}, fmt.Errorf("OPENAI_API_KEY missing: %w", domain.ErrProviderRejected)
	}
	return shimArtifact(req)
}

type StabilityConfig struct {
	APIKey       string
	SimulateDown bool
}

// StabilityShim is a dry-run stand-in for the Stability API backend.
type StabilityShim struct {
	cfg StabilityConfig
}

func NewStabilityShim(cfg StabilityConfig) *StabilityShim { return &StabilityShim{cfg: cfg} }

func (p *StabilityShim) Name() string { return "stability_api" }

func (p *StabilityShim) Generate(_ context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	if p.cfg.SimulateDown {
		return domain.Artifact{}, fmt.Errorf("stability simulated down: %w", domain.ErrProviderRejected)
	}
	if p.cfg.APIKey == "" {
		return domain.Artifact{}, fmt.Errorf("STABILITY_API_KEY missing: %w", domain.ErrProviderRejected)
	}
	return shimArtifact(req)
}

func shimArtifact(req domain.GenerationRequest) (domain.Artifact, error) {
	data, err := placeholderPNG(req.Prompt, req.Size)
	if err != nil {
		return domain.Artifact{}, err
	}
	return domain.Artifact{
		ID:        uuid.NewString(),
		Data:      data,
		MIMEType:  "image/png",
		CreatedAt: time.Now().UTC(),
	}, nil
}
