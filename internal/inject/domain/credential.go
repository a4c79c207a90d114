// Package domain defines the temporary credential type used for scoped
// injection: a short-lived value held in protected memory with TTL and
// use-count enforcement.
package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/agentsec/secrets/internal/securemem"
)

// Scope bounds where an injected credential value is visible.
type Scope string

// Injection scopes.
const (
	// ScopeProcess writes into the process-wide environment surface.
	ScopeProcess Scope = "process"

	// ScopeWorker writes into a per-owner in-memory map, the bounded
	// analogue of thread-local storage.
	ScopeWorker Scope = "worker"

	// ScopeRequest performs no shared mutation; the value is returned to
	// the caller to manage for the request's duration.
	ScopeRequest Scope = "request"
)

// TemporaryCredential is a short-lived credential whose value lives in a
// protected buffer. Valid while not expired and not depleted.
type TemporaryCredential struct {
	ID        string
	Name      string
	CreatedAt time.Time
	ExpiresAt *time.Time
	MaxUses   int
	UseCount  int
	Scope     Scope
	Metadata  map[string]string

	value *securemem.Buffer
}

// NewTemporaryCredential creates a credential holding a protected copy of
// value. ttl == 0 means no expiry; a negative ttl produces a credential
// that is already expired. The injector applies its default TTL first.
func NewTemporaryCredential(name string, value []byte, ttl time.Duration, maxUses int, scope Scope, metadata map[string]string, now time.Time) (*TemporaryCredential, error) {
	buf, err := securemem.NewBuffer(value)
	if err != nil {
		return nil, err
	}

	cred := &TemporaryCredential{
		ID:        newCredentialID(name, value, now),
		Name:      name,
		CreatedAt: now,
		MaxUses:   maxUses,
		Scope:     scope,
		Metadata:  metadata,
		value:     buf,
	}
	if ttl != 0 {
		expiresAt := now.Add(ttl)
		cred.ExpiresAt = &expiresAt
	}
	return cred, nil
}

// newCredentialID derives a non-reversible id from the name, value,
// creation time and fresh randomness.
func newCredentialID(name string, value []byte, now time.Time) string {
	var nonce [16]byte
	_, _ = rand.Read(nonce[:])

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano()))

	h := sha256.New()
	h.Write([]byte(name))
	h.Write(value)
	h.Write(ts[:])
	h.Write(nonce[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Value returns a copy of the credential value.
func (c *TemporaryCredential) Value() ([]byte, error) {
	return c.value.Bytes()
}

// IsExpired reports whether the TTL has lapsed at now.
func (c *TemporaryCredential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// IsDepleted reports whether the use limit has been reached.
// MaxUses <= 0 means unlimited.
func (c *TemporaryCredential) IsDepleted() bool {
	return c.MaxUses > 0 && c.UseCount >= c.MaxUses
}

// IsValid reports whether the credential can still be injected.
func (c *TemporaryCredential) IsValid(now time.Time) bool {
	return !c.IsExpired(now) && !c.IsDepleted()
}

// MarkUsed increments the use count.
func (c *TemporaryCredential) MarkUsed() {
	c.UseCount++
}

// RemainingUses returns how many injections remain, or -1 for unlimited.
func (c *TemporaryCredential) RemainingUses() int {
	if c.MaxUses <= 0 {
		return -1
	}
	remaining := c.MaxUses - c.UseCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Destroy zeroes and releases the protected value.
func (c *TemporaryCredential) Destroy() {
	c.value.Destroy()
}

// InjectionResult is the transient outcome of one injection attempt.
// Never persisted.
type InjectionResult struct {
	Success        bool
	CredentialID   string
	InjectedValue  string
	EnvironmentKey string
	Err            error
}
