// Package service provides credential value hashing. Two schemes are
// available: an unsalted SHA-256 digest that keeps verification
// deterministic and storage-compatible, and a salted Argon2id hasher for
// deployments that can tolerate a hash-format change.
package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/agentsec/secrets/internal/errors"
)

// Hasher computes and verifies one-way hashes of credential values.
// Implementations must never make the plaintext recoverable from the hash.
type Hasher interface {
	// Hash returns the stored representation of value.
	Hash(value []byte) (string, error)

	// Compare reports whether candidate matches the stored hash.
	// The comparison must not short-circuit on the first differing byte.
	Compare(candidate []byte, stored string) bool
}

// digestHasher hashes with unsalted SHA-256, hex encoded. Deterministic, so
// identical values produce identical hashes. Susceptible to precomputed
// tables if the store leaks; prefer NewArgon2Hasher where the stored format
// can change.
type digestHasher struct{}

// NewDigestHasher creates the SHA-256 digest hasher.
func NewDigestHasher() Hasher {
	return digestHasher{}
}

func (digestHasher) Hash(value []byte) (string, error) {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:]), nil
}

func (digestHasher) Compare(candidate []byte, stored string) bool {
	sum := sha256.Sum256(candidate)
	expected, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(sum[:], expected) == 1
}

// argon2Hasher hashes with salted Argon2id via go-pwdhash. Hashes are
// non-deterministic across calls; only Compare can check a match.
type argon2Hasher struct {
	hasher *pwdhash.PasswordHasher
}

// NewArgon2Hasher creates the Argon2id hasher with the moderate policy.
func NewArgon2Hasher() (Hasher, error) {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create argon2 hasher")
	}
	return &argon2Hasher{hasher: hasher}, nil
}

func (a *argon2Hasher) Hash(value []byte) (string, error) {
	hashed, err := a.hasher.Hash(value)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash credential value")
	}
	return hashed, nil
}

func (a *argon2Hasher) Compare(candidate []byte, stored string) bool {
	ok, err := a.hasher.Verify(candidate, stored)
	if err != nil {
		return false
	}
	return ok
}
