// Package artifacts persists generated images and hands back the URL that is
// surfaced in API responses and persisted with the image record.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vigil/internal/domain"
)

// Store writes an artifact somewhere durable and returns its URL. Load
// resolves a previously saved artifact by ID.
type Store interface {
	Save(ctx context.Context, art domain.Artifact) (string, error)
	Load(ctx context.Context, id string) ([]byte, error)
}

// FSStore keeps artifacts as flat files under a single outputs directory,
// one file per artifact ID.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = "outputs"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create outputs dir: %w", err)
	}
	return &FSStore{dir: abs}, nil
}

func (s *FSStore) Save(_ context.Context, art domain.Artifact) (string, error) {
	if art.ID == "" {
		return "", fmt.Errorf("artifact has no id")
	}
	path := filepath.Join(s.dir, art.ID+extForMIME(art.MIMEType))
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return "file://" + path, nil
}

func (s *FSStore) Load(_ context.Context, id string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, id+".*"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	return data, nil
}

func extForMIME(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
