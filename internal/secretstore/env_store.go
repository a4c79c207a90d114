package secretstore

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"
)

// EnvStore reads and writes secrets as prefixed process environment
// variables. Secret name "db-password" maps to "<prefix>DB_PASSWORD".
type EnvStore struct {
	prefix string
}

// NewEnvStore creates an environment-variable backend. prefix may be empty.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix}
}

func (s *EnvStore) key(name string) string {
	upper := strings.ToUpper(name)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, upper)
	return s.prefix + mapped
}

func (s *EnvStore) GetSecret(ctx context.Context, name string) (*Entry, error) {
	value, ok := os.LookupEnv(s.key(name))
	if !ok {
		return nil, ErrSecretNotFound
	}
	return &Entry{Name: name, Value: value, Version: 1}, nil
}

func (s *EnvStore) ListSecrets(ctx context.Context) ([]string, error) {
	var names []string
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.prefix != "" && !strings.HasPrefix(key, s.prefix) {
			continue
		}
		names = append(names, strings.ToLower(strings.TrimPrefix(key, s.prefix)))
	}
	sort.Strings(names)
	return names, nil
}

func (s *EnvStore) SetSecret(ctx context.Context, name, value string, metadata map[string]string) (*Entry, error) {
	if err := os.Setenv(s.key(name), value); err != nil {
		return nil, ErrBackendUnavailable
	}
	return &Entry{
		Name:      name,
		Value:     value,
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}, nil
}

func (s *EnvStore) DeleteSecret(ctx context.Context, name string) (bool, error) {
	key := s.key(name)
	if _, ok := os.LookupEnv(key); !ok {
		return false, nil
	}
	if err := os.Unsetenv(key); err != nil {
		return false, ErrBackendUnavailable
	}
	return true, nil
}

func (s *EnvStore) HealthCheck(ctx context.Context) error {
	return nil
}
