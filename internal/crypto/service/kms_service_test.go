package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
)

// localKeeperURI builds a base64key:// URI with a random local key.
func localKeeperURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return fmt.Sprintf("base64key://%s", base64.URLEncoding.EncodeToString(key))
}

func TestOpenKeeper(t *testing.T) {
	ctx := context.Background()
	kms := NewKMSService()

	keeper, err := kms.OpenKeeper(ctx, localKeeperURI(t))
	require.NoError(t, err)
	defer func() { _ = keeper.Close() }()

	ciphertext, err := keeper.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("payload"), ciphertext)

	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plaintext)
}

func TestOpenKeeperUnknownScheme(t *testing.T) {
	kms := NewKMSService()

	_, err := kms.OpenKeeper(context.Background(), "carrier-pigeon://nope")
	assert.Error(t, err)
}

func TestUnwrapMasterKey(t *testing.T) {
	ctx := context.Background()
	kms := NewKMSService()

	keeper, err := kms.OpenKeeper(ctx, localKeeperURI(t))
	require.NoError(t, err)
	defer func() { _ = keeper.Close() }()

	masterKey, err := cryptoDomain.GenerateMasterKey()
	require.NoError(t, err)

	wrapped, err := keeper.Encrypt(ctx, masterKey.Bytes())
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(wrapped)

	unwrapped, err := UnwrapMasterKey(ctx, keeper, encoded)
	require.NoError(t, err)
	assert.Equal(t, masterKey.Bytes(), unwrapped.Bytes())
}

func TestUnwrapMasterKeyErrors(t *testing.T) {
	ctx := context.Background()
	kms := NewKMSService()

	keeper, err := kms.OpenKeeper(ctx, localKeeperURI(t))
	require.NoError(t, err)
	defer func() { _ = keeper.Close() }()

	t.Run("invalid base64", func(t *testing.T) {
		_, err := UnwrapMasterKey(ctx, keeper, "not base64!")
		assert.Error(t, err)
	})

	t.Run("garbage ciphertext", func(t *testing.T) {
		_, err := UnwrapMasterKey(ctx, keeper, base64.StdEncoding.EncodeToString([]byte("garbage")))
		assert.Error(t, err)
	})
}
