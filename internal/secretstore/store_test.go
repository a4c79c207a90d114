package secretstore

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
	cryptoService "github.com/agentsec/secrets/internal/crypto/service"
)

func newTestEngine(t *testing.T) *cryptoService.Engine {
	t.Helper()
	key, err := cryptoDomain.GenerateMasterKey()
	require.NoError(t, err)
	engine, err := cryptoService.NewEngine(key)
	require.NoError(t, err)
	return engine
}

func TestEnvStore(t *testing.T) {
	store := NewEnvStore("TESTSECRET_")
	ctx := context.Background()

	_, err := store.GetSecret(ctx, "db-password")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	entry, err := store.SetSecret(ctx, "db-password", "hunter2", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Unsetenv("TESTSECRET_DB_PASSWORD") })
	assert.Equal(t, "hunter2", entry.Value)
	assert.Equal(t, "hunter2", os.Getenv("TESTSECRET_DB_PASSWORD"))

	got, err := store.GetSecret(ctx, "db-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Value)

	names, err := store.ListSecrets(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "db_password")

	deleted, err := store.DeleteSecret(ctx, "db-password")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteSecret(ctx, "db-password")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")
	store, err := NewFileStore(path, newTestEngine(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.GetSecret(ctx, "api-key")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	entry, err := store.SetSecret(ctx, "api-key", "sk-12345", map[string]string{"env": "test"})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)

	got, err := store.GetSecret(ctx, "api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", got.Value)
	assert.Equal(t, "test", got.Metadata["env"])

	// Updating bumps the version and keeps the creation time.
	updated, err := store.SetSecret(ctx, "api-key", "sk-67890", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, entry.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.IsZero())

	names, err := store.ListSecrets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-key"}, names)

	deleted, err := store.DeleteSecret(ctx, "api-key")
	require.NoError(t, err)
	assert.True(t, deleted)

	names, err = store.ListSecrets(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFileStoreOnDiskFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")
	store, err := NewFileStore(path, newTestEngine(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.SetSecret(ctx, "api-key", "sk-12345", nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// hex(nonce):hex(tag):hex(ciphertext), and no plaintext leakage.
	content := string(raw)
	parts := strings.Split(content, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 24)
	assert.Len(t, parts[1], 32)
	assert.NotContains(t, content, "sk-12345")
	assert.NotContains(t, content, "api-key")
}

func TestFileStoreWrongKeyFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")
	store, err := NewFileStore(path, newTestEngine(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.SetSecret(ctx, "api-key", "sk-12345", nil)
	require.NoError(t, err)

	other, err := NewFileStore(path, newTestEngine(t))
	require.NoError(t, err)

	_, err = other.GetSecret(ctx, "api-key")
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestFileStoreMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.enc")
	require.NoError(t, os.WriteFile(path, []byte("not:valid"), 0o600))

	store, err := NewFileStore(path, newTestEngine(t))
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "anything")
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestRegistryResolvesByScheme(t *testing.T) {
	registry := NewRegistry()
	registry.Register("env", func(uri *url.URL) (Backend, error) {
		return NewEnvStore("TESTREG_"), nil
	})

	backend, err := registry.Open("env://")
	require.NoError(t, err)
	assert.IsType(t, &EnvStore{}, backend)

	_, err = registry.Open("vault://example")
	assert.Error(t, err)
}
