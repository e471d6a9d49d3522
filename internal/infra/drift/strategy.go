// Package drift implements the comparison strategies used to score how far
// a generated artifact has diverged from the fixed reference. Every strategy
// normalizes to [0,1] where 0 is identical and 1 is maximum divergence.
package drift

import (
	"context"
	"fmt"

	"vigil/internal/domain"
	"vigil/pkg/imagesim"
)

// Strategy scores divergence between a candidate artifact and the reference.
// Available reports whether the strategy can run under the current
// configuration; Score on an unavailable strategy returns
// domain.ErrDriftMethodUnavailable.
type Strategy interface {
	Method() domain.DriftMethod
	Available() bool
	Score(ctx context.Context, candidate, reference domain.Artifact) (float64, error)
}

// Embedder produces a feature vector for raw encoded image bytes.
type Embedder interface {
	EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error)
}

// EmbeddingStrategy scores drift as angular distance between feature vectors:
// 1 - (cos+1)/2, clamped. A nil embedder makes the strategy unavailable.
type EmbeddingStrategy struct {
	embedder Embedder
}

func NewEmbeddingStrategy(embedder Embedder) *EmbeddingStrategy {
	return &EmbeddingStrategy{embedder: embedder}
}

func (s *EmbeddingStrategy) Method() domain.DriftMethod { return domain.DriftMethodEmbedding }

func (s *EmbeddingStrategy) Available() bool { return s.embedder != nil }

func (s *EmbeddingStrategy) Score(ctx context.Context, candidate, reference domain.Artifact) (float64, error) {
	if s.embedder == nil {
		return 0, domain.ErrDriftMethodUnavailable
	}
	a, err := s.embedder.EmbedImage(ctx, candidate.Data, candidate.MIMEType)
	if err != nil {
		return 0, fmt.Errorf("embed candidate: %w", err)
	}
	b, err := s.embedder.EmbedImage(ctx, reference.Data, reference.MIMEType)
	if err != nil {
		return 0, fmt.Errorf("embed reference: %w", err)
	}
	cos := imagesim.Cosine(a, b)
	return clamp01(1 - (cos+1)/2), nil
}

// PHashStrategy scores drift as the hamming distance between 64-bit
// perceptual hashes, divided by the hash width.
type PHashStrategy struct{}

func NewPHashStrategy() *PHashStrategy { return &PHashStrategy{} }

func (s *PHashStrategy) Method() domain.DriftMethod { return domain.DriftMethodPHash }

func (s *PHashStrategy) Available() bool { return true }

func (s *PHashStrategy) Score(_ context.Context, candidate, reference domain.Artifact) (float64, error) {
	a, err := imagesim.Decode(candidate.Data)
	if err != nil {
		return 0, fmt.Errorf("decode candidate: %w", err)
	}
	b, err := imagesim.Decode(reference.Data)
	if err != nil {
		return 0, fmt.Errorf("decode reference: %w", err)
	}
	dist := imagesim.HammingDistance(imagesim.PerceptualHash(a), imagesim.PerceptualHash(b))
	return float64(dist) / float64(imagesim.HashBits), nil
}

// SSIMStrategy scores drift as 1 - SSIM over grayscale renditions.
type SSIMStrategy struct{}

func NewSSIMStrategy() *SSIMStrategy { return &SSIMStrategy{} }

func (s *SSIMStrategy) Method() domain.DriftMethod { return domain.DriftMethodSSIM }

func (s *SSIMStrategy) Available() bool { return true }

func (s *SSIMStrategy) Score(_ context.Context, candidate, reference domain.Artifact) (float64, error) {
	a, err := imagesim.Decode(candidate.Data)
	if err != nil {
		return 0, fmt.Errorf("decode candidate: %w", err)
	}
	b, err := imagesim.Decode(reference.Data)
	if err != nil {
		return 0, fmt.Errorf("decode reference: %w", err)
	}
	return clamp01(1 - imagesim.SSIM(a, b)), nil
}

// Cascade returns the configured strategies in fixed preference order:
// embedding, phash, ssim.
func Cascade(embedder Embedder) []Strategy {
	return []Strategy{
		NewEmbeddingStrategy(embedder),
		NewPHashStrategy(),
		NewSSIMStrategy(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
