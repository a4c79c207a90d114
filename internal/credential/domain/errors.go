package domain

import (
	"github.com/agentsec/secrets/internal/errors"
)

// Credential lifecycle error definitions.
//
// Expiry and depletion are expected states, not exceptional ones; callers
// branch on these sentinels rather than treating them as crashes.
var (
	// ErrCredentialNotFound indicates no credential exists with the given id.
	ErrCredentialNotFound = errors.Wrap(errors.ErrNotFound, "credential not found")

	// ErrCredentialExpired indicates the credential's TTL has lapsed.
	ErrCredentialExpired = errors.Wrap(errors.ErrInvalidInput, "credential expired")

	// ErrCredentialRevoked indicates the credential was revoked.
	ErrCredentialRevoked = errors.Wrap(errors.ErrInvalidInput, "credential revoked")

	// ErrCredentialCompromised indicates the credential was flagged by a leak
	// report. Rotation alone does not clear this state; Reinstate must be
	// called first.
	ErrCredentialCompromised = errors.Wrap(errors.ErrSecurityViolation, "credential compromised")
)
