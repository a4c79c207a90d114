package secretstore

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	apperrors "github.com/agentsec/secrets/internal/errors"
)

// Factory builds a backend from a parsed URI.
type Factory func(uri *url.URL) (Backend, error)

// Registry resolves backend URIs by scheme. Resolution happens once at
// construction time; callers hold the concrete Backend afterwards, not the
// URI string.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty scheme registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a scheme (e.g. "env", "file") to a factory. Later
// registrations for the same scheme replace earlier ones.
func (r *Registry) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = factory
}

// Open resolves a backend URI like "env://" or "file:///var/secrets.enc".
func (r *Registry) Open(rawURI string) (Backend, error) {
	uri, err := url.Parse(rawURI)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid backend uri %q", rawURI))
	}

	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(uri.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown backend scheme %q", uri.Scheme))
	}
	return factory(uri)
}
