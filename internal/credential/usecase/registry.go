// Package usecase implements the credential lifecycle: registration,
// hash-based verification, rotation policy, revocation, leak reporting and
// the leak scanner.
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentsec/secrets/internal/audit"
	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/credential/service"
	apperrors "github.com/agentsec/secrets/internal/errors"
)

// DefaultHistoryWindow bounds the per-credential access history.
const DefaultHistoryWindow = 1000

// Verification anomaly threshold: more than anomalyFailures failed attempts
// within the last anomalyWindow accesses flags the credential.
const (
	anomalyWindow   = 10
	anomalyFailures = 5
)

// RegisterOptions carries the optional registration parameters.
type RegisterOptions struct {
	// ExpiresIn sets a TTL; zero means no expiry.
	ExpiresIn time.Duration

	// RotationInterval marks the credential due for rotation after this
	// interval; zero disables the policy check.
	RotationInterval time.Duration

	// Metadata is free-form caller context, stored as-is.
	Metadata map[string]string
}

// CredentialRegistry manages the credential lifecycle. Only value hashes
// are retained; verification compares hashes in constant time.
type CredentialRegistry interface {
	// Register stores the hash of value under a fresh id.
	Register(ctx context.Context, name string, value []byte, opts RegisterOptions) (string, error)

	// Verify reports whether candidate matches the registered value.
	// False for unknown ids and non-active records. A lapsed TTL observed
	// here transitions the record to expired.
	Verify(ctx context.Context, id string, candidate []byte) bool

	// Rotate replaces the stored hash and reactivates expired or revoked
	// records. Compromised records are not reactivated; Reinstate first.
	Rotate(ctx context.Context, id string, newValue []byte) error

	// Revoke marks the credential revoked. Idempotent.
	Revoke(ctx context.Context, id, reason string) error

	// ReportLeak records a leak, marks the credential compromised and
	// revoked, and notifies registered callbacks.
	ReportLeak(ctx context.Context, id string, source credentialDomain.LeakSource, evidence string, severity credentialDomain.Severity) (*credentialDomain.Leak, error)

	// Reinstate clears compromised status so a subsequent Rotate can
	// reactivate the credential.
	Reinstate(ctx context.Context, id string) error

	// CheckRotationNeeded transitions overdue active records to
	// pending_rotation and returns their ids. Idempotent.
	CheckRotationNeeded(ctx context.Context) []string

	// CleanupExpired removes records whose TTL has lapsed and returns
	// how many were removed.
	CleanupExpired(ctx context.Context) int

	// GetStatus returns the credential's current status.
	GetStatus(ctx context.Context, id string) (credentialDomain.Status, error)

	// List returns sanitized copies of all records.
	List(ctx context.Context) []credentialDomain.Record

	// Leaks returns all recorded leak reports.
	Leaks(ctx context.Context) []credentialDomain.Leak

	// OnLeak registers a callback invoked for every leak report.
	// Callback panics are recovered and logged, never propagated.
	OnLeak(fn func(credentialDomain.Leak))
}

// RegistryOption configures a credentialRegistry.
type RegistryOption func(*credentialRegistry)

// WithHistoryWindow overrides the access history bound.
func WithHistoryWindow(n int) RegistryOption {
	return func(r *credentialRegistry) {
		if n > 0 {
			r.historyWindow = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *credentialRegistry) { r.now = now }
}

// WithRegistryLogger sets the slog logger for operational diagnostics.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *credentialRegistry) { r.log = logger }
}

type credentialRegistry struct {
	mu            sync.Mutex
	records       map[string]*credentialDomain.Record
	history       map[string][]credentialDomain.Access
	leaks         []credentialDomain.Leak
	leakCallbacks []func(credentialDomain.Leak)
	hasher        service.Hasher
	audit         *audit.Logger
	historyWindow int
	now           func() time.Time
	log           *slog.Logger
}

// NewCredentialRegistry creates an in-memory credential registry.
func NewCredentialRegistry(hasher service.Hasher, auditLogger *audit.Logger, opts ...RegistryOption) CredentialRegistry {
	r := &credentialRegistry{
		records:       make(map[string]*credentialDomain.Record),
		history:       make(map[string][]credentialDomain.Access),
		hasher:        hasher,
		audit:         auditLogger,
		historyWindow: DefaultHistoryWindow,
		now:           time.Now,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *credentialRegistry) Register(ctx context.Context, name string, value []byte, opts RegisterOptions) (string, error) {
	if name == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "credential name is required")
	}
	if len(value) == 0 {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "credential value is required")
	}

	hash, err := r.hasher.Hash(value)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash credential value")
	}

	now := r.now().UTC()
	record := &credentialDomain.Record{
		ID:               uuid.Must(uuid.NewV7()).String(),
		Name:             name,
		ValueHash:        hash,
		Status:           credentialDomain.StatusActive,
		CreatedAt:        now,
		RotationInterval: opts.RotationInterval,
		Metadata:         opts.Metadata,
	}
	if opts.ExpiresIn != 0 {
		expiresAt := now.Add(opts.ExpiresIn)
		record.ExpiresAt = &expiresAt
	}

	r.mu.Lock()
	r.records[record.ID] = record
	r.mu.Unlock()

	ttlSeconds := -1
	if opts.ExpiresIn != 0 {
		ttlSeconds = int(opts.ExpiresIn.Seconds())
	}
	r.emitAudit(func() error {
		return r.audit.LogCredentialCreated(ctx, name, record.ID, "", ttlSeconds, 0)
	})
	return record.ID, nil
}

func (r *credentialRegistry) Verify(ctx context.Context, id string, candidate []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return false
	}

	now := r.now().UTC()
	if record.Status == credentialDomain.StatusActive && record.TTLExpired(now) {
		record.Status = credentialDomain.StatusExpired
	}

	matched := record.Status == credentialDomain.StatusActive &&
		r.hasher.Compare(candidate, record.ValueHash)

	r.recordAccessLocked(ctx, record, now, matched)
	return matched
}

// recordAccessLocked appends to the bounded history and checks the anomaly
// threshold, all under the registry lock so status transitions and anomaly
// detection stay consistent.
func (r *credentialRegistry) recordAccessLocked(ctx context.Context, record *credentialDomain.Record, now time.Time, success bool) {
	history := append(r.history[record.ID], credentialDomain.Access{Time: now, Success: success})
	if len(history) > r.historyWindow {
		history = history[len(history)-r.historyWindow:]
	}
	r.history[record.ID] = history

	if success {
		return
	}

	recent := history
	if len(recent) > anomalyWindow {
		recent = recent[len(recent)-anomalyWindow:]
	}
	failures := 0
	for _, access := range recent {
		if !access.Success {
			failures++
		}
	}
	if failures > anomalyFailures {
		r.emitAudit(func() error {
			return r.audit.LogSecurityViolation(ctx, "verification_anomaly", map[string]any{
				"credential_id":   record.ID,
				"credential_name": record.Name,
				"recent_failures": failures,
				"window":          anomalyWindow,
			})
		})
	}
}

func (r *credentialRegistry) Rotate(ctx context.Context, id string, newValue []byte) error {
	if len(newValue) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "credential value is required")
	}

	hash, err := r.hasher.Hash(newValue)
	if err != nil {
		return apperrors.Wrap(err, "failed to hash credential value")
	}

	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return credentialDomain.ErrCredentialNotFound
	}
	if record.Status == credentialDomain.StatusCompromised {
		r.mu.Unlock()
		return credentialDomain.ErrCredentialCompromised
	}

	now := r.now().UTC()
	record.ValueHash = hash
	record.LastRotated = &now
	record.Status = credentialDomain.StatusActive
	name := record.Name
	r.mu.Unlock()

	r.emitAudit(func() error {
		return r.audit.Log(ctx, auditDomain.EventCredentialCreated, audit.Entry{
			Resource: name,
			Action:   "rotate",
			Details:  map[string]any{"id": id},
		})
	})
	return nil
}

func (r *credentialRegistry) Revoke(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return credentialDomain.ErrCredentialNotFound
	}
	if record.Status == credentialDomain.StatusRevoked {
		r.mu.Unlock()
		return nil
	}
	record.Status = credentialDomain.StatusRevoked
	name := record.Name
	r.mu.Unlock()

	r.emitAudit(func() error {
		return r.audit.LogCredentialRevoked(ctx, name, id, reason)
	})
	return nil
}

func (r *credentialRegistry) ReportLeak(ctx context.Context, id string, source credentialDomain.LeakSource, evidence string, severity credentialDomain.Severity) (*credentialDomain.Leak, error) {
	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, credentialDomain.ErrCredentialNotFound
	}

	leak := credentialDomain.Leak{
		CredentialID: id,
		DetectedAt:   r.now().UTC(),
		Source:       source,
		Evidence:     evidence,
		Severity:     severity,
	}
	r.leaks = append(r.leaks, leak)

	// Compromised refuses verification and rotation alike, so it subsumes
	// revocation. The credential_revoked event still fires below.
	record.Status = credentialDomain.StatusCompromised
	name := record.Name
	callbacks := make([]func(credentialDomain.Leak), len(r.leakCallbacks))
	copy(callbacks, r.leakCallbacks)
	r.mu.Unlock()

	for _, fn := range callbacks {
		r.invokeLeakCallback(fn, leak)
	}

	r.emitAudit(func() error {
		return r.audit.LogSecurityViolation(ctx, "credential_leak", map[string]any{
			"credential_id":   id,
			"credential_name": name,
			"source":          string(source),
			"severity":        string(severity),
			"evidence":        evidence,
		})
	})
	r.emitAudit(func() error {
		return r.audit.LogCredentialRevoked(ctx, name, id, "leak detected")
	})
	return &leak, nil
}

func (r *credentialRegistry) invokeLeakCallback(fn func(credentialDomain.Leak), leak credentialDomain.Leak) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("leak callback panicked",
				slog.String("credential_id", leak.CredentialID),
				slog.Any("panic", rec),
			)
		}
	}()
	fn(leak)
}

func (r *credentialRegistry) Reinstate(ctx context.Context, id string) error {
	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return credentialDomain.ErrCredentialNotFound
	}
	if record.Status != credentialDomain.StatusCompromised {
		r.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrInvalidInput, "credential is not compromised")
	}
	record.Status = credentialDomain.StatusRevoked
	name := record.Name
	r.mu.Unlock()

	r.emitAudit(func() error {
		return r.audit.Log(ctx, auditDomain.EventCredentialCreated, audit.Entry{
			Resource: name,
			Action:   "reinstate",
			Details:  map[string]any{"id": id},
		})
	})
	return nil
}

func (r *credentialRegistry) CheckRotationNeeded(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var due []string
	for id, record := range r.records {
		if record.Status != credentialDomain.StatusActive {
			continue
		}
		if record.RotationDue(now) {
			record.Status = credentialDomain.StatusPendingRotation
			due = append(due, id)
		}
	}
	return due
}

func (r *credentialRegistry) CleanupExpired(ctx context.Context) int {
	r.mu.Lock()
	now := r.now().UTC()
	type removed struct{ id, name string }
	var cleaned []removed
	for id, record := range r.records {
		if record.Status == credentialDomain.StatusExpired || record.TTLExpired(now) {
			delete(r.records, id)
			delete(r.history, id)
			cleaned = append(cleaned, removed{id: id, name: record.Name})
		}
	}
	r.mu.Unlock()

	for _, c := range cleaned {
		r.emitAudit(func() error {
			return r.audit.LogCredentialCleaned(ctx, c.name, "")
		})
	}
	return len(cleaned)
}

func (r *credentialRegistry) GetStatus(ctx context.Context, id string) (credentialDomain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return "", credentialDomain.ErrCredentialNotFound
	}
	if record.Status == credentialDomain.StatusActive && record.TTLExpired(r.now().UTC()) {
		record.Status = credentialDomain.StatusExpired
	}
	return record.Status, nil
}

func (r *credentialRegistry) List(ctx context.Context) []credentialDomain.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]credentialDomain.Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, *record)
	}
	return records
}

func (r *credentialRegistry) Leaks(ctx context.Context) []credentialDomain.Leak {
	r.mu.Lock()
	defer r.mu.Unlock()

	leaks := make([]credentialDomain.Leak, len(r.leaks))
	copy(leaks, r.leaks)
	return leaks
}

func (r *credentialRegistry) OnLeak(fn func(credentialDomain.Leak)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leakCallbacks = append(r.leakCallbacks, fn)
}

// emitAudit runs an audit emission and logs failures instead of propagating
// them; a failed audit write must not undo the state transition it records.
func (r *credentialRegistry) emitAudit(fn func() error) {
	if r.audit == nil {
		return
	}
	if err := fn(); err != nil {
		r.log.Warn("failed to emit audit event", slog.Any("error", err))
	}
}
