package domain

import (
	"github.com/agentsec/secrets/internal/errors"
)

// Cryptographic operation error definitions.
//
// Decryption failures are deliberately generic: the same error covers a wrong
// key, a tampered ciphertext, a truncated blob, and an associated-data
// mismatch, so an attacker cannot use error responses as an oracle.
var (
	// ErrInvalidKeySize indicates a key that is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrEncryptionFailed indicates an encryption operation failed, including
	// the explicit policy rejection of zero-length plaintexts.
	ErrEncryptionFailed = errors.Wrap(errors.ErrInvalidInput, "encryption failed")

	// ErrDecryptionFailed indicates a decryption operation failed. The
	// specific cause is never disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidIterations indicates a key derivation iteration count below one.
	ErrInvalidIterations = errors.Wrap(errors.ErrInvalidInput, "invalid iteration count")
)
