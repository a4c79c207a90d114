package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"

	// Register KMS provider drivers resolved by URI scheme.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSKeeper is the subset of a gocloud.dev secrets keeper the engine needs
// to unwrap a master key. *secrets.Keeper implements it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens secret keepers for KMS-wrapped master keys. The concrete
// provider is selected once, at open time, by the URI scheme: gcpkms://,
// awskms://, azurekeyvault://, hashivault:// or base64key:// for local use.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a KMS service backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// UnwrapMasterKey decrypts a KMS-wrapped, base64-encoded master key and
// returns it as a usable MasterKey. Intermediate plaintext is zeroed.
func UnwrapMasterKey(ctx context.Context, keeper KMSKeeper, wrappedBase64 string) (*cryptoDomain.MasterKey, error) {
	wrapped, err := base64.StdEncoding.DecodeString(wrappedBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid wrapped key encoding: %w", err)
	}

	raw, err := keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap master key: %w", err)
	}
	defer cryptoDomain.Zero(raw)

	return cryptoDomain.NewMasterKey(raw)
}
