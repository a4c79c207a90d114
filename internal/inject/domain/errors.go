package domain

import (
	"github.com/agentsec/secrets/internal/errors"
)

// Temporary credential error definitions. Expiry and depletion are expected
// outcomes surfaced through InjectionResult, not panics.
var (
	// ErrCredentialNotFound indicates no temporary credential exists with
	// the given id.
	ErrCredentialNotFound = errors.Wrap(errors.ErrNotFound, "temporary credential not found")

	// ErrCredentialExpired indicates the credential's TTL has lapsed.
	ErrCredentialExpired = errors.Wrap(errors.ErrInvalidInput, "temporary credential expired")

	// ErrCredentialDepleted indicates the use limit has been reached.
	ErrCredentialDepleted = errors.Wrap(errors.ErrInvalidInput, "temporary credential depleted")
)
