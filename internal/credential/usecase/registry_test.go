package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsec/secrets/internal/audit"
	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/credential/service"
)

var testSigningKey = []byte("registry-test-signing-key-bytes!")

// memoryAuditStore is a minimal in-memory audit.Store for registry tests.
type memoryAuditStore struct {
	events []auditDomain.Event
}

func (s *memoryAuditStore) Append(ctx context.Context, events []auditDomain.Event) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *memoryAuditStore) Scan(ctx context.Context, fn func(auditDomain.Event) bool) error {
	for _, e := range s.events {
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) (CredentialRegistry, *memoryAuditStore) {
	t.Helper()
	store := &memoryAuditStore{}
	logger, err := audit.NewLogger(store, testSigningKey, audit.WithBufferSize(1))
	require.NoError(t, err)
	return NewCredentialRegistry(service.NewDigestHasher(), logger, opts...), store
}

func eventsOfType(store *memoryAuditStore, eventType auditDomain.EventType) []auditDomain.Event {
	var out []auditDomain.Event
	for _, e := range store.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestRegistryRegisterAndVerify(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("P@ssw0rd123"), RegisterOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.True(t, registry.Verify(ctx, id, []byte("P@ssw0rd123")))
	assert.False(t, registry.Verify(ctx, id, []byte("wrong")))
	assert.False(t, registry.Verify(ctx, "no-such-id", []byte("P@ssw0rd123")))

	created := eventsOfType(store, auditDomain.EventCredentialCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "db_pw", created[0].Resource)
}

func TestRegistryRegisterValidation(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, "", []byte("value"), RegisterOptions{})
	assert.Error(t, err)

	_, err = registry.Register(ctx, "name", nil, RegisterOptions{})
	assert.Error(t, err)
}

func TestRegistryVerifyLazyExpiry(t *testing.T) {
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	registry, _ := newTestRegistry(t, WithClock(clock))
	ctx := context.Background()

	id, err := registry.Register(ctx, "api-key", []byte("value"), RegisterOptions{ExpiresIn: time.Hour})
	require.NoError(t, err)
	assert.True(t, registry.Verify(ctx, id, []byte("value")))

	now = now.Add(2 * time.Hour)
	assert.False(t, registry.Verify(ctx, id, []byte("value")))

	status, err := registry.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, credentialDomain.StatusExpired, status)
}

func TestRegistryRotateReactivatesRevoked(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("oldPassword"), RegisterOptions{})
	require.NoError(t, err)
	require.NoError(t, registry.Revoke(ctx, id, "manual"))
	assert.False(t, registry.Verify(ctx, id, []byte("oldPassword")))

	require.NoError(t, registry.Rotate(ctx, id, []byte("newPassword")))

	status, err := registry.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, credentialDomain.StatusActive, status)
	assert.False(t, registry.Verify(ctx, id, []byte("oldPassword")))
	assert.True(t, registry.Verify(ctx, id, []byte("newPassword")))
}

func TestRegistryRotateRefusesCompromised(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("value"), RegisterOptions{})
	require.NoError(t, err)

	_, err = registry.ReportLeak(ctx, id, credentialDomain.LeakSourceLog, "seen in app.log", credentialDomain.SeverityHigh)
	require.NoError(t, err)

	err = registry.Rotate(ctx, id, []byte("newValue"))
	assert.ErrorIs(t, err, credentialDomain.ErrCredentialCompromised)

	// Reinstate clears compromised, then rotation works again.
	require.NoError(t, registry.Reinstate(ctx, id))
	require.NoError(t, registry.Rotate(ctx, id, []byte("newValue")))
	assert.True(t, registry.Verify(ctx, id, []byte("newValue")))
}

func TestRegistryRevokeIdempotent(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("value"), RegisterOptions{})
	require.NoError(t, err)

	require.NoError(t, registry.Revoke(ctx, id, "first"))
	require.NoError(t, registry.Revoke(ctx, id, "second"))

	// Only the first revocation emits an event.
	assert.Len(t, eventsOfType(store, auditDomain.EventCredentialRevoked), 1)
}

func TestRegistryRevokeUnknown(t *testing.T) {
	registry, _ := newTestRegistry(t)
	err := registry.Revoke(context.Background(), "missing", "reason")
	assert.ErrorIs(t, err, credentialDomain.ErrCredentialNotFound)
}

func TestRegistryReportLeak(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "github-token", []byte("value"), RegisterOptions{})
	require.NoError(t, err)

	var notified []credentialDomain.Leak
	registry.OnLeak(func(leak credentialDomain.Leak) {
		notified = append(notified, leak)
	})
	registry.OnLeak(func(leak credentialDomain.Leak) {
		panic("callback failure must not propagate")
	})

	leak, err := registry.ReportLeak(ctx, id, credentialDomain.LeakSourceEnvironment, "found in env", credentialDomain.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, id, leak.CredentialID)
	assert.Equal(t, credentialDomain.LeakSourceEnvironment, leak.Source)

	status, err := registry.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, credentialDomain.StatusCompromised, status)
	assert.False(t, registry.Verify(ctx, id, []byte("value")))

	require.Len(t, notified, 1)
	assert.Equal(t, id, notified[0].CredentialID)

	// Exactly one security_violation per leak report.
	violations := eventsOfType(store, auditDomain.EventSecurityViolation)
	assert.Len(t, violations, 1)
	assert.Len(t, eventsOfType(store, auditDomain.EventCredentialRevoked), 1)

	leaks := registry.Leaks(ctx)
	require.Len(t, leaks, 1)
	assert.Equal(t, id, leaks[0].CredentialID)
}

func TestRegistryCheckRotationNeeded(t *testing.T) {
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	registry, _ := newTestRegistry(t, WithClock(clock))
	ctx := context.Background()

	overdueID, err := registry.Register(ctx, "rotate-me", []byte("v1"), RegisterOptions{RotationInterval: 24 * time.Hour})
	require.NoError(t, err)
	_, err = registry.Register(ctx, "fresh", []byte("v2"), RegisterOptions{RotationInterval: 30 * 24 * time.Hour})
	require.NoError(t, err)
	_, err = registry.Register(ctx, "no-policy", []byte("v3"), RegisterOptions{})
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	due := registry.CheckRotationNeeded(ctx)
	require.Len(t, due, 1)
	assert.Equal(t, overdueID, due[0])

	status, err := registry.GetStatus(ctx, overdueID)
	require.NoError(t, err)
	assert.Equal(t, credentialDomain.StatusPendingRotation, status)

	// Idempotent: already pending records are not flagged again.
	assert.Empty(t, registry.CheckRotationNeeded(ctx))
}

func TestRegistryCleanupExpired(t *testing.T) {
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	registry, _ := newTestRegistry(t, WithClock(clock))
	ctx := context.Background()

	expiredID, err := registry.Register(ctx, "short-lived", []byte("v"), RegisterOptions{ExpiresIn: time.Minute})
	require.NoError(t, err)
	keptID, err := registry.Register(ctx, "long-lived", []byte("v"), RegisterOptions{ExpiresIn: time.Hour})
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, registry.CleanupExpired(ctx))

	_, err = registry.GetStatus(ctx, expiredID)
	assert.ErrorIs(t, err, credentialDomain.ErrCredentialNotFound)
	_, err = registry.GetStatus(ctx, keptID)
	assert.NoError(t, err)
}

func TestRegistryVerifyAnomalyDetection(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("value"), RegisterOptions{})
	require.NoError(t, err)

	// Six failures within the last ten accesses crosses the threshold.
	for i := 0; i < 6; i++ {
		assert.False(t, registry.Verify(ctx, id, []byte("wrong")))
	}

	violations := eventsOfType(store, auditDomain.EventSecurityViolation)
	require.NotEmpty(t, violations)
	assert.Equal(t, "verification_anomaly", violations[0].Details["type"])
}

func TestRegistryAccessHistoryBounded(t *testing.T) {
	registry, _ := newTestRegistry(t, WithHistoryWindow(5))
	ctx := context.Background()

	id, err := registry.Register(ctx, "db_pw", []byte("value"), RegisterOptions{})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		registry.Verify(ctx, id, []byte("value"))
	}

	inner, ok := registry.(*credentialRegistry)
	require.True(t, ok)
	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.Len(t, inner.history[id], 5)
}

func TestRegistryList(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, "a", []byte("v"), RegisterOptions{})
	require.NoError(t, err)
	_, err = registry.Register(ctx, "b", []byte("v"), RegisterOptions{})
	require.NoError(t, err)

	records := registry.List(ctx)
	assert.Len(t, records, 2)
	for _, record := range records {
		// The hash, never the plaintext, is what's stored.
		assert.NotEmpty(t, record.ValueHash)
		assert.NotContains(t, record.ValueHash, "v")
	}
}
