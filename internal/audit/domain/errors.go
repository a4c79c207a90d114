package domain

import (
	"github.com/agentsec/secrets/internal/errors"
)

var (
	// ErrSignatureInvalid indicates an event whose signature does not match
	// its contents: either tampering or the wrong verification key.
	ErrSignatureInvalid = errors.Wrap(errors.ErrSecurityViolation, "audit event signature invalid")

	// ErrInvalidSigningKey indicates a missing or empty signing key.
	ErrInvalidSigningKey = errors.Wrap(errors.ErrInvalidInput, "invalid audit signing key")
)
