package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporaryCredentialValidity(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid until expiry", func(t *testing.T) {
		cred, err := NewTemporaryCredential("name", []byte("v"), time.Hour, 3, ScopeProcess, nil, now)
		require.NoError(t, err)
		assert.True(t, cred.IsValid(now))
		assert.False(t, cred.IsExpired(now))
		assert.True(t, cred.IsExpired(now.Add(2*time.Hour)))
		assert.False(t, cred.IsValid(now.Add(2*time.Hour)))
	})

	t.Run("negative ttl is already expired", func(t *testing.T) {
		cred, err := NewTemporaryCredential("name", []byte("v"), -time.Second, 3, ScopeProcess, nil, now)
		require.NoError(t, err)
		assert.True(t, cred.IsExpired(now))
		assert.False(t, cred.IsValid(now))
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		cred, err := NewTemporaryCredential("name", []byte("v"), 0, 3, ScopeProcess, nil, now)
		require.NoError(t, err)
		assert.False(t, cred.IsExpired(now.Add(1000*time.Hour)))
	})

	t.Run("depletion", func(t *testing.T) {
		cred, err := NewTemporaryCredential("name", []byte("v"), time.Hour, 2, ScopeProcess, nil, now)
		require.NoError(t, err)
		assert.Equal(t, 2, cred.RemainingUses())

		cred.MarkUsed()
		assert.True(t, cred.IsValid(now))
		cred.MarkUsed()
		assert.True(t, cred.IsDepleted())
		assert.False(t, cred.IsValid(now))
		assert.Zero(t, cred.RemainingUses())
	})

	t.Run("unlimited uses", func(t *testing.T) {
		cred, err := NewTemporaryCredential("name", []byte("v"), time.Hour, -1, ScopeProcess, nil, now)
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			cred.MarkUsed()
		}
		assert.False(t, cred.IsDepleted())
		assert.Equal(t, -1, cred.RemainingUses())
	})
}

func TestTemporaryCredentialValue(t *testing.T) {
	now := time.Now().UTC()
	cred, err := NewTemporaryCredential("name", []byte("secret-value"), time.Hour, 1, ScopeProcess, nil, now)
	require.NoError(t, err)

	value, err := cred.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("secret-value"), value)

	cred.Destroy()
	_, err = cred.Value()
	assert.Error(t, err)
}

func TestTemporaryCredentialIDUniqueness(t *testing.T) {
	now := time.Now().UTC()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		cred, err := NewTemporaryCredential("name", []byte("v"), time.Hour, 1, ScopeProcess, nil, now)
		require.NoError(t, err)
		assert.False(t, seen[cred.ID])
		seen[cred.ID] = true
	}
}
