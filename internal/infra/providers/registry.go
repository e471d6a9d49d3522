// Package providers holds the interchangeable image generation backends and
// the registry the fallback chain is assembled from.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"vigil/internal/domain"
)

type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.ImageProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]domain.ImageProvider)}
}

func (r *Registry) Register(p domain.ImageProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered: %w", name, domain.ErrInvalidConfiguration)
	}
	r.providers[name] = p
	return nil
}

func (r *Registry) Get(name string) (domain.ImageProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v): %w", name, r.availableLocked(), domain.ErrInvalidConfiguration)
	}
	return p, nil
}

func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildChain resolves an ordered list of provider names into the fallback
// chain. Unknown names and duplicates are configuration errors.
func (r *Registry) BuildChain(names []string) ([]domain.ImageProvider, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty provider chain: %w", domain.ErrInvalidConfiguration)
	}
	seen := make(map[string]bool, len(names))
	chain := make([]domain.ImageProvider, 0, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice in chain: %w", name, domain.ErrInvalidConfiguration)
		}
		seen[name] = true
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}
