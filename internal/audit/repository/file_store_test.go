package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
)

func marshalEvent(t *testing.T, event auditDomain.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestFileStore_AppendAndScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	key := []byte("test-signing-key-32-bytes-long!!")
	events := []auditDomain.Event{
		signedEvent(t, key),
		signedEvent(t, key),
	}
	require.NoError(t, store.Append(context.Background(), events))

	var scanned []auditDomain.Event
	err = store.Scan(context.Background(), func(e auditDomain.Event) bool {
		scanned = append(scanned, e)
		return true
	})
	require.NoError(t, err)
	require.Len(t, scanned, 2)

	for _, e := range scanned {
		assert.True(t, e.Verify(key))
	}
}

func TestFileStore_MissingFileMeansNoEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.log")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	var scanned int
	err = store.Scan(context.Background(), func(e auditDomain.Event) bool {
		scanned++
		return true
	})
	assert.NoError(t, err)
	assert.Zero(t, scanned)
}

func TestFileStore_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	key := []byte("test-signing-key-32-bytes-long!!")
	require.NoError(t, store.Append(context.Background(), []auditDomain.Event{signedEvent(t, key)}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_ScanSkipsUnparseableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	key := []byte("test-signing-key-32-bytes-long!!")
	require.NoError(t, store.Append(context.Background(), []auditDomain.Event{signedEvent(t, key)}))

	// Corrupt the log with a garbage line between two valid events.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("this is not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append(context.Background(), []auditDomain.Event{signedEvent(t, key)}))

	var scanned int
	err = store.Scan(context.Background(), func(e auditDomain.Event) bool {
		scanned++
		return true
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, scanned)
}

func TestFileStore_AppendedRecordsSurviveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	key := []byte("test-signing-key-32-bytes-long!!")
	event := auditDomain.Event{
		EventType: auditDomain.EventSecretRead,
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		Actor:     "agent",
		Resource:  "db-password",
		Action:    "read",
		Result:    auditDomain.ResultSuccess,
		Details:   map[string]any{"source": "env", "attempt": 3},
	}
	require.NoError(t, event.Sign(key))
	require.NoError(t, store.Append(context.Background(), []auditDomain.Event{event}))

	var got auditDomain.Event
	err = store.Scan(context.Background(), func(e auditDomain.Event) bool {
		got = e
		return false
	})
	require.NoError(t, err)

	// Numeric details decode as float64 after the round trip but the
	// canonical signing payload is byte-identical, so Verify still holds.
	assert.True(t, got.Verify(key))
	assert.Equal(t, event.Signature, got.Signature)
	assert.True(t, got.Timestamp.Equal(event.Timestamp))
}
