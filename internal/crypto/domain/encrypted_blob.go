package domain

import (
	"encoding/hex"
	"fmt"
)

const (
	// NonceSize is the GCM-recommended 96-bit nonce length.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	nonceHexLen = NonceSize * 2
	tagHexLen   = TagSize * 2
)

// EncryptedBlob is the result of an authenticated encryption: ciphertext, the
// fresh random nonce used for it, and the authentication tag covering both
// the ciphertext and any associated data supplied at encrypt time.
type EncryptedBlob struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// EncodeString renders the blob in the fixed wire format
// hex(nonce) + hex(tag) + hex(ciphertext) with no separators. The fixed-width
// prefixes (24 and 32 hex characters) make parsing deterministic.
func (b EncryptedBlob) EncodeString() string {
	return hex.EncodeToString(b.Nonce) + hex.EncodeToString(b.Tag) + hex.EncodeToString(b.Ciphertext)
}

// ParseEncryptedString decodes the wire format produced by EncodeString.
// Any malformed input yields the generic decryption error.
func ParseEncryptedString(encoded string) (EncryptedBlob, error) {
	if len(encoded) < nonceHexLen+tagHexLen {
		return EncryptedBlob{}, fmt.Errorf("%w: input too short", ErrDecryptionFailed)
	}

	nonce, err := hex.DecodeString(encoded[:nonceHexLen])
	if err != nil {
		return EncryptedBlob{}, ErrDecryptionFailed
	}
	tag, err := hex.DecodeString(encoded[nonceHexLen : nonceHexLen+tagHexLen])
	if err != nil {
		return EncryptedBlob{}, ErrDecryptionFailed
	}
	ciphertext, err := hex.DecodeString(encoded[nonceHexLen+tagHexLen:])
	if err != nil {
		return EncryptedBlob{}, ErrDecryptionFailed
	}

	return EncryptedBlob{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}, nil
}
