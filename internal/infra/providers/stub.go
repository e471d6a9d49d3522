package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
)

// ForceFailToken in a prompt makes the stub reject the request. It exists so
// the fallback chain can be exercised end to end without a real outage.
const ForceFailToken = "force_fail"

const defaultSize = "1024x1024"

// Stub produces a deterministic placeholder image locally, no external
// dependency. It is the default primary in development.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Generate(_ context.Context, req domain.GenerationRequest) (domain.Artifact, error) {
	if strings.Contains(strings.ToLower(req.Prompt), ForceFailToken) {
		return domain.Artifact{}, fmt.Errorf("stub forced failure: %w", domain.ErrProviderRejected)
	}
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

// placeholderPNG renders a prompt-seeded block pattern so different prompts
// produce visually distinct images.
func placeholderPNG(prompt, size string) ([]byte, error) {
	w, h := parseSize(size)
	sum := sha256.Sum256([]byte(prompt))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	block := w / 8
	if block < 1 {
		block = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (x/block + (y/block)*8) % len(sum)
			img.Set(x, y, color.RGBA{R: sum[i], G: sum[(i+7)%len(sum)], B: sum[(i+13)%len(sum)], A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func parseSize(size string) (w, h int) {
	w, h = 256, 256
	if size == "" {
		size = defaultSize
	}
	parts := strings.SplitN(strings.ToLower(size), "x", 2)
	if len(parts) != 2 {
		return w, h
	}
	pw, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	ph, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || pw < 1 || ph < 1 {
		return w, h
	}
	// Placeholders never need more pixels than the similarity math samples.
	const maxDim = 512
	if pw > maxDim {
		pw = maxDim
	}
	if ph > maxDim {
		ph = maxDim
	}
	return pw, ph
}
