package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
	cryptoService "github.com/agentsec/secrets/internal/crypto/service"
)

// RunGenerateKeys generates a 32-byte master key and a 32-byte audit signing
// key, printed as environment variable assignments. Key material is zeroed
// from memory after encoding.
//
// When kmsKeyURI is set, the master key is wrapped with KMS before output
// and the plaintext key is never printed. For local development, use
// kmsKeyURI="base64key://<32-byte-base64-key>". Never use base64key in
// production; use cloud KMS providers (gcpkms, awskms, azurekeyvault).
func RunGenerateKeys(ctx context.Context, writer io.Writer, kmsKeyURI string) error {
	masterKey := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	signingKey := make([]byte, 32)
	if _, err := rand.Read(signingKey); err != nil {
		return fmt.Errorf("failed to generate audit signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	_, _ = fmt.Fprintln(writer, "# Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)

	if kmsKeyURI == "" {
		_, _ = fmt.Fprintf(writer, "MASTER_KEY=\"%s\"\n", hex.EncodeToString(masterKey))
		_, _ = fmt.Fprintf(writer, "AUDIT_SIGNING_KEY=\"%s\"\n", hex.EncodeToString(signingKey))
		return nil
	}

	kmsService := cryptoService.NewKMSService()
	keeperInterface, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeperInterface.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(writer, "# Warning: failed to close KMS keeper: %v\n", closeErr)
		}
	}()

	keeper, ok := keeperInterface.(interface {
		Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	})
	if !ok {
		return fmt.Errorf("KMS keeper does not support encryption")
	}

	ciphertext, err := keeper.Encrypt(ctx, masterKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "KMS_WRAPPED_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))
	_, _ = fmt.Fprintf(writer, "AUDIT_SIGNING_KEY=\"%s\"\n", hex.EncodeToString(signingKey))

	return nil
}
