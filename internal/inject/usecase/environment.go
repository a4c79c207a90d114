package usecase

import (
	"os"
	"sync"
)

// EnvironmentStore is the shared exposure surface process-scope injection
// writes into. Modeled as an injected capability so the contention around
// the single process environment is explicit and testable.
type EnvironmentStore interface {
	// Set writes a key to the environment.
	Set(key, value string) error

	// Get reads a key. The second return reports presence.
	Get(key string) (string, bool)

	// Unset removes a key.
	Unset(key string) error
}

// osEnvironmentStore is backed by the real process environment.
type osEnvironmentStore struct{}

// NewOSEnvironmentStore creates a store backed by os.Setenv/os.Unsetenv.
func NewOSEnvironmentStore() EnvironmentStore {
	return osEnvironmentStore{}
}

func (osEnvironmentStore) Set(key, value string) error {
	return os.Setenv(key, value)
}

func (osEnvironmentStore) Get(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (osEnvironmentStore) Unset(key string) error {
	return os.Unsetenv(key)
}

// MemoryEnvironmentStore is an in-memory EnvironmentStore for tests and for
// callers that must not touch the real process environment.
type MemoryEnvironmentStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryEnvironmentStore creates an empty in-memory store.
func NewMemoryEnvironmentStore() *MemoryEnvironmentStore {
	return &MemoryEnvironmentStore{values: make(map[string]string)}
}

func (m *MemoryEnvironmentStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryEnvironmentStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *MemoryEnvironmentStore) Unset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of keys currently set.
func (m *MemoryEnvironmentStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
