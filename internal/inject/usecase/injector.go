// Package usecase implements scoped credential injection: short-lived
// values placed into a bounded exposure surface with TTL and use-count
// enforcement and guaranteed cleanup.
package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agentsec/secrets/internal/audit"
	apperrors "github.com/agentsec/secrets/internal/errors"
	injectDomain "github.com/agentsec/secrets/internal/inject/domain"
)

// Injector defaults, overridable per instance.
const (
	DefaultEnvPrefix = "AGENT_TEMP_"
	DefaultTTL       = time.Hour
	DefaultMaxUses   = 10
)

// CredentialOptions carries the optional creation parameters.
type CredentialOptions struct {
	// TTL of the credential. Zero applies the injector default; a negative
	// value creates an already-expired credential.
	TTL time.Duration

	// MaxUses bounds injections. Zero applies the injector default; a
	// negative value means unlimited.
	MaxUses int

	// Scope selects the exposure surface. Defaults to process scope.
	Scope injectDomain.Scope

	// Metadata is free-form caller context.
	Metadata map[string]string
}

// InjectOptions carries the optional injection parameters.
type InjectOptions struct {
	// EnvKey overrides the derived environment key.
	EnvKey string

	// Owner identifies the worker for worker-scoped credentials.
	Owner string
}

// binding tracks one injected exposure. Owner is empty for process scope.
type binding struct {
	credID string
	owner  string
}

// Injector creates temporary credentials and injects them into the
// configured environment store. One mutex serializes the credential map and
// the binding map so concurrent injections and cleanups cannot race on the
// shared environment surface.
type Injector struct {
	mu           sync.Mutex
	creds        map[string]*injectDomain.TemporaryCredential
	bindings     map[string]binding
	workerValues map[string]map[string]string
	env          EnvironmentStore
	audit        *audit.Logger
	prefix       string
	defaultTTL   time.Duration
	defaultUses  int
	now          func() time.Time
	log          *slog.Logger
}

// InjectorOption configures an Injector.
type InjectorOption func(*Injector)

// WithEnvPrefix overrides the injected environment key prefix.
func WithEnvPrefix(prefix string) InjectorOption {
	return func(i *Injector) { i.prefix = prefix }
}

// WithDefaultTTL overrides the default credential TTL.
func WithDefaultTTL(ttl time.Duration) InjectorOption {
	return func(i *Injector) { i.defaultTTL = ttl }
}

// WithDefaultMaxUses overrides the default use limit.
func WithDefaultMaxUses(n int) InjectorOption {
	return func(i *Injector) { i.defaultUses = n }
}

// WithInjectorClock overrides the time source.
func WithInjectorClock(now func() time.Time) InjectorOption {
	return func(i *Injector) { i.now = now }
}

// WithInjectorLogger sets the slog logger.
func WithInjectorLogger(logger *slog.Logger) InjectorOption {
	return func(i *Injector) { i.log = logger }
}

// NewInjector creates an injector writing process-scope credentials into
// env.
func NewInjector(env EnvironmentStore, auditLogger *audit.Logger, opts ...InjectorOption) *Injector {
	i := &Injector{
		creds:        make(map[string]*injectDomain.TemporaryCredential),
		bindings:     make(map[string]binding),
		workerValues: make(map[string]map[string]string),
		env:          env,
		audit:        auditLogger,
		prefix:       DefaultEnvPrefix,
		defaultTTL:   DefaultTTL,
		defaultUses:  DefaultMaxUses,
		now:          time.Now,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CreateCredential stores value in protected memory under a fresh
// non-reversible id.
func (i *Injector) CreateCredential(ctx context.Context, name string, value []byte, opts CredentialOptions) (*injectDomain.TemporaryCredential, error) {
	if name == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "credential name is required")
	}
	if len(value) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "credential value is required")
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = i.defaultTTL
	}
	maxUses := opts.MaxUses
	if maxUses == 0 {
		maxUses = i.defaultUses
	}
	scope := opts.Scope
	if scope == "" {
		scope = injectDomain.ScopeProcess
	}

	cred, err := injectDomain.NewTemporaryCredential(name, value, ttl, maxUses, scope, opts.Metadata, i.now().UTC())
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.creds[cred.ID] = cred
	i.mu.Unlock()

	ttlSeconds := int(ttl.Seconds())
	i.emitAudit(func() error {
		return i.audit.LogCredentialCreated(ctx, name, cred.ID, string(scope), ttlSeconds, maxUses)
	})
	return cred, nil
}

// EnvKeyFor derives the environment key for a credential name:
// {prefix}{UPPERCASE(name)} with non-alphanumerics folded to underscores.
func (i *Injector) EnvKeyFor(name string) string {
	upper := strings.ToUpper(name)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, upper)
	return i.prefix + mapped
}

// Inject exposes the credential value in its scope. Unknown, expired and
// depleted credentials yield a failed result with the matching error and no
// shared state is mutated on any failure path.
func (i *Injector) Inject(ctx context.Context, id string, opts InjectOptions) injectDomain.InjectionResult {
	i.mu.Lock()

	cred, ok := i.creds[id]
	if !ok {
		i.mu.Unlock()
		return injectDomain.InjectionResult{CredentialID: id, Err: injectDomain.ErrCredentialNotFound}
	}
	if cred.IsExpired(i.now().UTC()) {
		i.mu.Unlock()
		return injectDomain.InjectionResult{CredentialID: id, Err: injectDomain.ErrCredentialExpired}
	}
	if cred.IsDepleted() {
		i.mu.Unlock()
		return injectDomain.InjectionResult{CredentialID: id, Err: injectDomain.ErrCredentialDepleted}
	}

	value, err := cred.Value()
	if err != nil {
		i.mu.Unlock()
		return injectDomain.InjectionResult{CredentialID: id, Err: err}
	}

	envKey := opts.EnvKey
	if envKey == "" {
		envKey = i.EnvKeyFor(cred.Name)
	}

	switch cred.Scope {
	case injectDomain.ScopeProcess:
		if err := i.env.Set(envKey, string(value)); err != nil {
			i.mu.Unlock()
			return injectDomain.InjectionResult{CredentialID: id, Err: apperrors.Wrap(err, "failed to set environment key")}
		}
		// Last writer wins on key collision; the binding tracks the
		// credential that most recently owns the key.
		i.bindings[bindingKey("", envKey)] = binding{credID: id}
	case injectDomain.ScopeWorker:
		owner := opts.Owner
		if owner == "" {
			i.mu.Unlock()
			return injectDomain.InjectionResult{CredentialID: id, Err: apperrors.Wrap(apperrors.ErrInvalidInput, "owner is required for worker scope")}
		}
		values := i.workerValues[owner]
		if values == nil {
			values = make(map[string]string)
			i.workerValues[owner] = values
		}
		values[envKey] = string(value)
		i.bindings[bindingKey(owner, envKey)] = binding{credID: id, owner: owner}
	case injectDomain.ScopeRequest:
		// No shared mutation; the caller manages the returned value.
	}

	cred.MarkUsed()
	name := cred.Name
	useCount := cred.UseCount
	remaining := cred.RemainingUses()
	i.mu.Unlock()

	i.emitAudit(func() error {
		return i.audit.LogCredentialUsed(ctx, name, envKey, useCount, remaining)
	})
	return injectDomain.InjectionResult{
		Success:        true,
		CredentialID:   id,
		InjectedValue:  string(value),
		EnvironmentKey: envKey,
	}
}

// InjectScoped creates a process-scope credential, injects it, runs fn,
// and removes the injected binding on every exit path including panics.
func (i *Injector) InjectScoped(ctx context.Context, name string, value []byte, ttl time.Duration, envKey string, fn func(context.Context) error) error {
	cred, err := i.CreateCredential(ctx, name, value, CredentialOptions{
		TTL:     ttl,
		MaxUses: -1,
		Scope:   injectDomain.ScopeProcess,
	})
	if err != nil {
		return err
	}
	defer i.Revoke(ctx, cred.ID)

	result := i.Inject(ctx, cred.ID, InjectOptions{EnvKey: envKey})
	if !result.Success {
		return result.Err
	}

	return fn(ctx)
}

// LookupWorker reads a worker-scoped injected value.
func (i *Injector) LookupWorker(owner, envKey string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	value, ok := i.workerValues[owner][envKey]
	return value, ok
}

// Cleanup removes one tracked process-scope binding. Emits
// credential_cleaned when no other binding still maps to the same
// credential.
func (i *Injector) Cleanup(ctx context.Context, envKey string) bool {
	i.mu.Lock()
	removed, last := i.removeBindingLocked("", envKey)
	i.mu.Unlock()

	if removed != "" && last {
		i.emitCleaned(ctx, removed, envKey)
	}
	return removed != ""
}

// CleanupWorker removes every binding owned by a worker.
func (i *Injector) CleanupWorker(ctx context.Context, owner string) int {
	i.mu.Lock()
	var cleaned []struct{ credID, envKey string }
	count := 0
	for key, b := range i.bindings {
		if b.owner != owner || owner == "" {
			continue
		}
		_, envKey := splitBindingKey(key)
		credID, last := i.removeBindingLocked(owner, envKey)
		if credID == "" {
			continue
		}
		count++
		if last {
			cleaned = append(cleaned, struct{ credID, envKey string }{credID, envKey})
		}
	}
	i.mu.Unlock()

	for _, c := range cleaned {
		i.emitCleaned(ctx, c.credID, c.envKey)
	}
	return count
}

// CleanupAll sweeps every tracked binding and returns the count removed.
func (i *Injector) CleanupAll(ctx context.Context) int {
	i.mu.Lock()
	type swept struct{ credID, envKey string }
	var cleaned []swept
	count := 0
	for key := range i.bindings {
		owner, envKey := splitBindingKey(key)
		credID, last := i.removeBindingLocked(owner, envKey)
		if credID == "" {
			continue
		}
		count++
		if last {
			cleaned = append(cleaned, swept{credID, envKey})
		}
	}
	i.mu.Unlock()

	for _, c := range cleaned {
		i.emitCleaned(ctx, c.credID, c.envKey)
	}
	return count
}

// Revoke removes all bindings tied to the credential and deletes its
// record, destroying the protected value.
func (i *Injector) Revoke(ctx context.Context, id string) bool {
	i.mu.Lock()
	cred, ok := i.creds[id]
	if !ok {
		i.mu.Unlock()
		return false
	}

	for key, b := range i.bindings {
		if b.credID != id {
			continue
		}
		owner, envKey := splitBindingKey(key)
		i.removeBindingLocked(owner, envKey)
	}
	delete(i.creds, id)
	name := cred.Name
	cred.Destroy()
	i.mu.Unlock()

	i.emitAudit(func() error {
		return i.audit.LogCredentialRevoked(ctx, name, id, "revoked by injector")
	})
	return true
}

// CleanupExpired revokes every credential that is expired or depleted and
// returns the count.
func (i *Injector) CleanupExpired(ctx context.Context) int {
	i.mu.Lock()
	now := i.now().UTC()
	var stale []string
	for id, cred := range i.creds {
		if cred.IsExpired(now) || cred.IsDepleted() {
			stale = append(stale, id)
		}
	}
	i.mu.Unlock()

	count := 0
	for _, id := range stale {
		if i.Revoke(ctx, id) {
			count++
		}
	}
	return count
}

// Credential returns the live credential record for id.
func (i *Injector) Credential(id string) (*injectDomain.TemporaryCredential, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cred, ok := i.creds[id]
	return cred, ok
}

// removeBindingLocked unsets the exposure for one binding and reports the
// owning credential id and whether this was its last remaining binding.
func (i *Injector) removeBindingLocked(owner, envKey string) (credID string, last bool) {
	key := bindingKey(owner, envKey)
	b, ok := i.bindings[key]
	if !ok {
		return "", false
	}
	delete(i.bindings, key)

	if owner == "" {
		if err := i.env.Unset(envKey); err != nil {
			i.log.Warn("failed to unset environment key",
				slog.String("key", envKey),
				slog.Any("error", err),
			)
		}
	} else {
		delete(i.workerValues[owner], envKey)
		if len(i.workerValues[owner]) == 0 {
			delete(i.workerValues, owner)
		}
	}

	last = true
	for _, other := range i.bindings {
		if other.credID == b.credID {
			last = false
			break
		}
	}
	return b.credID, last
}

func (i *Injector) emitCleaned(ctx context.Context, credID, envKey string) {
	i.mu.Lock()
	name := credID
	if cred, ok := i.creds[credID]; ok {
		name = cred.Name
	}
	i.mu.Unlock()

	i.emitAudit(func() error {
		return i.audit.LogCredentialCleaned(ctx, name, envKey)
	})
}

// emitAudit logs audit emission failures instead of propagating them.
func (i *Injector) emitAudit(fn func() error) {
	if i.audit == nil {
		return
	}
	if err := fn(); err != nil {
		i.log.Warn("failed to emit audit event", slog.Any("error", err))
	}
}

func bindingKey(owner, envKey string) string {
	return owner + "\x00" + envKey
}

func splitBindingKey(key string) (owner, envKey string) {
	owner, envKey, _ = strings.Cut(key, "\x00")
	return owner, envKey
}
