// Package domain holds the cryptographic value types: master keys,
// encrypted blobs and their wire encodings.
package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the required master key length for AES-256.
	KeySize = 32

	// DefaultSaltSize is the salt length generated for password derivation.
	DefaultSaltSize = 16

	// DefaultPBKDF2Iterations follows the OWASP recommendation for
	// PBKDF2-HMAC-SHA256. Callers may raise it; going below is a policy
	// decision they own.
	DefaultPBKDF2Iterations = 600_000
)

// MasterKey is the 32-byte root secret of a crypto engine instance.
// It lives for the lifetime of the engine and is zeroed on Close.
type MasterKey struct {
	key []byte
}

// NewMasterKey wraps raw key material. The input is copied; the caller keeps
// responsibility for zeroing its own slice.
func NewMasterKey(key []byte) (*MasterKey, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &MasterKey{key: k}, nil
}

// GenerateMasterKey creates a random 32-byte master key from crypto/rand.
func GenerateMasterKey() (*MasterKey, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	defer Zero(key)
	return NewMasterKey(key)
}

// DeriveMasterKey stretches a password into a master key with
// PBKDF2-HMAC-SHA256. A nil salt generates a fresh random one; retrieve it
// with Salt for storage alongside the ciphertexts.
func DeriveMasterKey(password string, salt []byte, iterations int) (*MasterKey, []byte, error) {
	if salt == nil {
		salt = make([]byte, DefaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	derived, err := DeriveKey(password, salt, iterations)
	if err != nil {
		return nil, nil, err
	}
	defer Zero(derived)

	key, err := NewMasterKey(derived)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

// DeriveKey produces exactly 32 bytes of key material from a password via
// PBKDF2-HMAC-SHA256. Iterations below one are rejected; anything below
// DefaultPBKDF2Iterations weakens offline-attack resistance and is the
// caller's call to make.
func DeriveKey(password string, salt []byte, iterations int) ([]byte, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, iterations)
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New), nil
}

// Bytes exposes the raw key material for cipher construction.
// Do not retain the returned slice beyond the call.
func (m *MasterKey) Bytes() []byte {
	return m.key
}

// Close zeroes the key material. The key is unusable afterwards.
func (m *MasterKey) Close() {
	Zero(m.key)
}

// String renders a redaction marker, never key material.
func (m *MasterKey) String() string { return "MasterKey(***)" }
