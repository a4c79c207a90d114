package audit

import (
	"context"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
)

// Convenience loggers mapping domain events onto the primitive Log call with
// a fixed field layout. Credential values never appear here; ids, names and
// counters only.

// LogConfigAccess records a configuration read. Secret reads are a distinct
// event type so they can be filtered without inspecting details.
func (l *Logger) LogConfigAccess(ctx context.Context, key, source string, isSecret, fromCache bool) error {
	eventType := auditDomain.EventConfigAccess
	if isSecret {
		eventType = auditDomain.EventSecretRead
	}
	return l.Log(ctx, eventType, Entry{
		Resource: key,
		Action:   "read",
		Details: map[string]any{
			"source":     source,
			"from_cache": fromCache,
			"is_secret":  isSecret,
		},
	})
}

// LogCredentialCreated records creation of a credential or temporary
// credential. ttlSeconds < 0 means no expiry.
func (l *Logger) LogCredentialCreated(ctx context.Context, name, id, scope string, ttlSeconds, maxUses int) error {
	details := map[string]any{"id": id}
	if scope != "" {
		details["scope"] = scope
	}
	if ttlSeconds >= 0 {
		details["ttl_seconds"] = ttlSeconds
	}
	if maxUses > 0 {
		details["max_uses"] = maxUses
	}
	return l.Log(ctx, auditDomain.EventCredentialCreated, Entry{
		Resource: name,
		Action:   "create",
		Details:  details,
	})
}

// LogCredentialUsed records a successful injection of a credential.
func (l *Logger) LogCredentialUsed(ctx context.Context, name, envKey string, useCount, remaining int) error {
	return l.Log(ctx, auditDomain.EventCredentialUsed, Entry{
		Resource: name,
		Action:   "use",
		Details: map[string]any{
			"env_key":   envKey,
			"use_count": useCount,
			"remaining": remaining,
		},
	})
}

// LogCredentialRevoked records revocation, with the triggering reason.
func (l *Logger) LogCredentialRevoked(ctx context.Context, name, id, reason string) error {
	details := map[string]any{"id": id}
	if reason != "" {
		details["reason"] = reason
	}
	return l.Log(ctx, auditDomain.EventCredentialRevoked, Entry{
		Resource: name,
		Action:   "revoke",
		Details:  details,
	})
}

// LogCredentialCleaned records removal of an injected environment binding.
func (l *Logger) LogCredentialCleaned(ctx context.Context, name, envKey string) error {
	return l.Log(ctx, auditDomain.EventCredentialCleaned, Entry{
		Resource: name,
		Action:   "cleanup",
		Details:  map[string]any{"env_key": envKey},
	})
}

// LogSecurityViolation records a detected security event (leak, tamper).
// Always result=denied; the violation type leads the details.
func (l *Logger) LogSecurityViolation(ctx context.Context, violationType string, details map[string]any) error {
	merged := map[string]any{"type": violationType}
	for k, v := range details {
		merged[k] = v
	}
	return l.Log(ctx, auditDomain.EventSecurityViolation, Entry{
		Action:  "violation",
		Result:  auditDomain.ResultDenied,
		Details: merged,
	})
}
