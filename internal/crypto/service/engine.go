// Package service implements the crypto engine on top of AES-256-GCM, plus
// KMS-backed master key unwrapping via gocloud.dev secret keepers.
package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
)

// Engine provides authenticated encryption under a single master key.
//
// Each Encrypt call draws a fresh random 96-bit nonce. Random nonces are only
// sound below the GCM birthday bound; rotate the master key well before 2^32
// encryptions under it. The engine does not count calls; that ceiling is the
// caller's responsibility.
//
// The engine is stateless after construction and safe for concurrent use.
type Engine struct {
	aead cipher.AEAD
	key  *cryptoDomain.MasterKey
}

// NewEngine creates an engine from an existing master key.
func NewEngine(key *cryptoDomain.MasterKey) (*Engine, error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Engine{aead: aead, key: key}, nil
}

// NewEngineFromPassword derives the master key from a password with
// PBKDF2-HMAC-SHA256 and builds an engine from it. The salt used for
// derivation is returned so it can be stored next to the ciphertexts.
func NewEngineFromPassword(password string, salt []byte, iterations int) (*Engine, []byte, error) {
	key, usedSalt, err := cryptoDomain.DeriveMasterKey(password, salt, iterations)
	if err != nil {
		return nil, nil, err
	}

	engine, err := NewEngine(key)
	if err != nil {
		key.Close()
		return nil, nil, err
	}
	return engine, usedSalt, nil
}

// Encrypt seals plaintext under a fresh random nonce. The associated data is
// authenticated but not encrypted; the same bytes must be presented at
// decrypt time. Zero-length plaintexts are rejected by policy.
func (e *Engine) Encrypt(plaintext, associatedData []byte) (cryptoDomain.EncryptedBlob, error) {
	if len(plaintext) == 0 {
		return cryptoDomain.EncryptedBlob{}, fmt.Errorf("%w: empty plaintext", cryptoDomain.ErrEncryptionFailed)
	}

	nonce := make([]byte, cryptoDomain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return cryptoDomain.EncryptedBlob{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nil, nonce, plaintext, associatedData)

	// Seal appends the 16-byte tag; split it out for the wire format.
	split := len(sealed) - cryptoDomain.TagSize
	return cryptoDomain.EncryptedBlob{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens a blob. It fails closed: a wrong key, tampered ciphertext,
// truncated input, bad nonce, or mismatched associated data all yield the
// same generic error.
func (e *Engine) Decrypt(blob cryptoDomain.EncryptedBlob, associatedData []byte) ([]byte, error) {
	if len(blob.Nonce) != cryptoDomain.NonceSize || len(blob.Tag) != cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := e.aead.Open(nil, blob.Nonce, sealed, associatedData)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString seals a string and returns the hex wire encoding
// hex(nonce)+hex(tag)+hex(ciphertext).
func (e *Engine) EncryptString(plaintext, associatedData string) (string, error) {
	var aad []byte
	if associatedData != "" {
		aad = []byte(associatedData)
	}

	blob, err := e.Encrypt([]byte(plaintext), aad)
	if err != nil {
		return "", err
	}
	return blob.EncodeString(), nil
}

// DecryptString opens a hex wire encoding produced by EncryptString.
func (e *Engine) DecryptString(encoded, associatedData string) (string, error) {
	blob, err := cryptoDomain.ParseEncryptedString(encoded)
	if err != nil {
		return "", err
	}

	var aad []byte
	if associatedData != "" {
		aad = []byte(associatedData)
	}

	plaintext, err := e.Decrypt(blob, aad)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Close zeroes the engine's master key. The engine is unusable afterwards.
func (e *Engine) Close() {
	e.key.Close()
}

// ConstantTimeCompare compares two byte slices without data-dependent timing.
// A length mismatch returns false immediately; equal-length inputs are always
// inspected in full, never short-circuited on the first differing byte.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
