package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMasterKeySizeValidation(t *testing.T) {
	_, err := NewMasterKey(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewMasterKey(make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	key, err := NewMasterKey(make([]byte, KeySize))
	require.NoError(t, err)
	assert.Len(t, key.Bytes(), KeySize)
}

func TestNewMasterKeyCopiesInput(t *testing.T) {
	raw := make([]byte, KeySize)
	raw[0] = 0xaa

	key, err := NewMasterKey(raw)
	require.NoError(t, err)

	raw[0] = 0xbb
	assert.Equal(t, byte(0xaa), key.Bytes()[0])
}

func TestMasterKeyClose(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)

	key.Close()
	assert.Equal(t, make([]byte, KeySize), key.Bytes())
}

func TestMasterKeyStringRedacts(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	defer key.Close()

	assert.Equal(t, "MasterKey(***)", key.String())
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := DeriveKey("password", salt, 1000)
	require.NoError(t, err)
	assert.Len(t, k1, KeySize)

	// Deterministic for same inputs.
	k2, err := DeriveKey("password", salt, 1000)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// Sensitive to every input.
	k3, err := DeriveKey("password2", salt, 1000)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	k4, err := DeriveKey("password", []byte("fedcba9876543210"), 1000)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)

	k5, err := DeriveKey("password", salt, 1001)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k5)
}

func TestDeriveKeyRejectsBadIterations(t *testing.T) {
	_, err := DeriveKey("password", []byte("salt"), 0)
	assert.ErrorIs(t, err, ErrInvalidIterations)
}

func TestEncryptedBlobWireFormat(t *testing.T) {
	blob := EncryptedBlob{
		Ciphertext: []byte{0x01, 0x02},
		Nonce:      make([]byte, NonceSize),
		Tag:        make([]byte, TagSize),
	}

	encoded := blob.EncodeString()
	assert.Len(t, encoded, 24+32+4)

	parsed, err := ParseEncryptedString(encoded)
	require.NoError(t, err)
	assert.Equal(t, blob, parsed)
}

func TestParseEncryptedStringRejectsMalformed(t *testing.T) {
	_, err := ParseEncryptedString("too-short")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// Right length, not hex.
	bad := make([]byte, 24+32)
	for i := range bad {
		bad[i] = 'z'
	}
	_, err = ParseEncryptedString(string(bad))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)

	Zero(nil) // must not panic
}
