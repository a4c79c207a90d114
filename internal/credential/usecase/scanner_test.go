package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentsec/secrets/internal/audit"
	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/credential/service"
	"github.com/agentsec/secrets/internal/sensitive"
)

func newScannerFixture(t *testing.T) (CredentialRegistry, *LeakScanner, func(environ []string)) {
	t.Helper()
	store := &memoryAuditStore{}
	logger, err := audit.NewLogger(store, testSigningKey, audit.WithBufferSize(1))
	require.NoError(t, err)
	registry := NewCredentialRegistry(service.NewDigestHasher(), logger)

	var environ []string
	scanner := NewLeakScanner(registry, sensitive.NewPolicy(), WithEnviron(func() []string {
		return environ
	}))
	return registry, scanner, func(e []string) { environ = e }
}

func TestLeakScannerEnvironment(t *testing.T) {
	registry, scanner, setEnviron := newScannerFixture(t)
	ctx := context.Background()

	id, err := registry.Register(ctx, "github", []byte("ghp_abcdefghij0123456789"), RegisterOptions{})
	require.NoError(t, err)

	setEnviron([]string{
		// Sensitive name containing the registered credential name: flagged.
		"GITHUB_TOKEN=ghp_abcdefghij0123456789",
		// Sensitive name, but no registered credential matches.
		"AWS_SECRET_ACCESS_KEY=xxxx",
		// Contains the credential name but not a sensitive keyword.
		"GITHUB_ORG=agentsec",
		"PATH=/usr/bin",
	})

	report, err := scanner.Scan(ctx, ScanOptions{Environment: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flagged)
	assert.Empty(t, report.BackendErrors)

	status, err := registry.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, credentialDomain.StatusCompromised, status)

	leaks := registry.Leaks(ctx)
	require.Len(t, leaks, 1)
	assert.Equal(t, credentialDomain.LeakSourceEnvironment, leaks[0].Source)
}

func TestLeakScannerLogFile(t *testing.T) {
	registry, scanner, _ := newScannerFixture(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, "api_key", []byte("sk-abcdefghij0123456789"), RegisterOptions{})
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "app.log")
	content := "starting up\n" +
		"api_key = \"sk-abcdefghij0123456789\"\n" +
		"request served in 3ms\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o600))

	report, err := scanner.Scan(ctx, ScanOptions{LogFiles: []string{logPath}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flagged)

	leaks := registry.Leaks(ctx)
	require.Len(t, leaks, 1)
	assert.Equal(t, credentialDomain.LeakSourceLog, leaks[0].Source)
	assert.Contains(t, leaks[0].Evidence, "app.log:2")
}

func TestLeakScannerMissingLogFileDoesNotAbort(t *testing.T) {
	registry, scanner, setEnviron := newScannerFixture(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, "github", []byte("value"), RegisterOptions{})
	require.NoError(t, err)
	setEnviron([]string{"GITHUB_TOKEN=value"})

	report, err := scanner.Scan(ctx, ScanOptions{
		Environment: true,
		LogFiles:    []string{filepath.Join(t.TempDir(), "does-not-exist.log")},
	})
	require.NoError(t, err)

	// The log backend failed; the environment scan still ran.
	assert.Len(t, report.BackendErrors, 1)
	assert.Equal(t, 1, report.Flagged)
}

func TestLeakScannerNothingRegistered(t *testing.T) {
	_, scanner, setEnviron := newScannerFixture(t)
	setEnviron([]string{"SOME_SECRET_TOKEN=abcdefghij0123456789xx"})

	report, err := scanner.Scan(context.Background(), ScanOptions{Environment: true})
	require.NoError(t, err)
	assert.Zero(t, report.Flagged)
}
