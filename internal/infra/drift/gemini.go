package drift

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"
)

var ErrEmptyEmbedding = errors.New("drift: empty embedding from model")

const DefaultEmbeddingModel = "gemini-embedding-001"

// GeminiEmbedder is a thin wrapper around the official genai client. The
// client reads GEMINI_API_KEY from the environment.
type GeminiEmbedder struct {
	cli   *genai.Client
	model string
}

func NewGeminiEmbedder(ctx context.Context, model string) (*GeminiEmbedder, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("drift: gemini client: %w", err)
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GeminiEmbedder{cli: cli, model: model}, nil
}

func (g *GeminiEmbedder) Name() string { return "Gemini:" + g.model }

// EmbedImage returns the model's feature vector for the encoded image bytes.
func (g *GeminiEmbedder) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	resp, err := g.cli.Models.EmbedContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}}}},
		nil,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Values, nil
}
