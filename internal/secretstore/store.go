// Package secretstore defines the pluggable secret backend interface and its
// adapters: a process environment backend and an encrypted file backend.
// Backends are resolved once at construction time through a scheme registry.
package secretstore

import (
	"context"
	"time"

	"github.com/agentsec/secrets/internal/errors"
)

// Backend errors.
var (
	// ErrSecretNotFound indicates the named secret does not exist in the
	// backend.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrBackendUnavailable indicates the backing store could not be
	// reached or read. Callers may recover with a default value.
	ErrBackendUnavailable = errors.Wrap(errors.ErrUnavailable, "secret backend unavailable")
)

// Entry is one stored secret.
type Entry struct {
	Name      string            `json:"name"`
	Value     string            `json:"value"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Backend is a pluggable secret store.
type Backend interface {
	// GetSecret returns the named secret or ErrSecretNotFound.
	GetSecret(ctx context.Context, name string) (*Entry, error)

	// ListSecrets returns the names of all stored secrets.
	ListSecrets(ctx context.Context) ([]string, error)

	// SetSecret stores a secret, creating or updating it. The returned
	// entry carries the assigned version.
	SetSecret(ctx context.Context, name, value string, metadata map[string]string) (*Entry, error)

	// DeleteSecret removes a secret. Returns false when it did not exist.
	DeleteSecret(ctx context.Context, name string) (bool, error)

	// HealthCheck reports whether the backend is usable.
	HealthCheck(ctx context.Context) error
}
