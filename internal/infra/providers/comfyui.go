package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
)

const (
	ComfyModeStub = "stub"
	ComfyModeFail = "fail"
	ComfyModeLive = "live"
)

type ComfyUIConfig struct {
	URL     string
	Mode    string
	Timeout time.Duration
	Client  *http.Client
}

// ComfyUI drives a local ComfyUI instance. The mode switch makes it usable
// without the instance running: stub renders locally, fail rejects every
// request so chain fallback can be demonstrated on demand.
type ComfyUI struct {
	cfg    ComfyUIConfig
	client *http.Client
}

func NewComfyUI(cfg ComfyUIConfig) *ComfyUI {
	if cfg.URL == "" {
		cfg.URL = "http://127.0.0.1:8188"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Mode == "" {
		cfg.Mode = ComfyModeStub
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ComfyUI{cfg: cfg, client: client}
}

func (p *ComfyUI) Name() string { return "comfyui" }

func (p *ComfyUI) Generate(ctx context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	switch strings.ToLower(p.cfg.Mode) {
	case ComfyModeFail:
		return domain.Artifact{}, fmt.Errorf("comfyui forced failure: %w", domain.ErrProviderRejected)
	case ComfyModeLive, "http":
		data, mime, err := p.callLive(ctx, req)
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("comfyui live: %w", err)
		}
		return domain.Artifact{
			ID:        uuid.NewString(),
			Data:      data,
			MIMEType:  mime,
			CreatedAt: time.Now().UTC(),
		}, nil
	default:
		return shimArtifact(req)
	}
}

type comfyRequest struct {
	Prompt       string `json:"prompt"`
	Size         string `json:"size,omitempty"`
	Seed         string `json:"seed,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty"`
}

type comfyResponse struct {
	OK       bool   `json:"ok"`
	ImageURL string `json:"image_url"`
}

// callLive posts the prompt and accepts either a JSON envelope pointing at
// the rendered image or the raw image bytes directly.
func (p *ComfyUI) callLive(ctx context.Context, req domain.GenerationRequest) ([]byte, string, error) {
	payload := comfyRequest{
		Prompt:       req.Prompt,
		Size:         req.Size,
		Seed:         req.Params["seed"],
		ReferenceURL: req.Params["reference_url"],
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ctype, "application/json") {
		var envelope comfyResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, "", fmt.Errorf("decode envelope: %w", err)
		}
		if !envelope.OK || envelope.ImageURL == "" {
			return nil, "", fmt.Errorf("error envelope ok=%v image_url=%q", envelope.OK, envelope.ImageURL)
		}
		return p.download(ctx, envelope.ImageURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, imageMIME(ctype), nil
}

func (p *ComfyUI) download(ctx context.Context, url string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, imageMIME(strings.ToLower(resp.Header.Get("Content-Type"))), nil
}

func imageMIME(ctype string) string {
	if strings.HasPrefix(ctype, "image/") {
		if i := strings.Index(ctype, ";"); i > 0 {
			return ctype[:i]
		}
		return ctype
	}
	return "image/png"
}
