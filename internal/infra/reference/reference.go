// Package reference loads the fixed reference artifact drift scores are
// computed against. Loaded artifacts are cached by path so repeated requests
// do not touch the filesystem.
package reference

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"vigil/internal/domain"
)

const cacheSize = 64

type Store struct {
	defaultPath string
	cache       *lru.Cache[string, domain.Artifact]
}

// NewStore builds a reference store rooted at defaultPath. An empty path
// disables the store; Default then reports domain.ErrReferenceUnavailable.
func NewStore(defaultPath string) (*Store, error) {
	cache, err := lru.New[string, domain.Artifact](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{defaultPath: defaultPath, cache: cache}, nil
}

func (s *Store) Enabled() bool { return s.defaultPath != "" }

// Default loads the configured reference artifact.
func (s *Store) Default() (domain.Artifact, error) {
	if s.defaultPath == "" {
		return domain.Artifact{}, fmt.Errorf("no reference configured: %w", domain.ErrReferenceUnavailable)
	}
	return s.Load(s.defaultPath)
}

// Load reads the artifact at path, consulting the cache first. The artifact
// ID is the hex digest of its contents so the same bytes always resolve to
// the same reference identity.
func (s *Store) Load(path string) (domain.Artifact, error) {
	if art, ok := s.cache.Get(path); ok {
		return art, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("read %s: %w: %v", path, domain.ErrReferenceUnavailable, err)
	}
	sum := sha256.Sum256(data)
	art := domain.Artifact{
		ID:       hex.EncodeToString(sum[:8]),
		Data:     data,
		MIMEType: mimeForPath(path),
	}
	s.cache.Add(path, art)
	return art, nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
