package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/agentsec/secrets/internal/app"
	"github.com/agentsec/secrets/internal/config"
	credentialUseCase "github.com/agentsec/secrets/internal/credential/usecase"
)

// RunScanLeaks loads every secret from the configured backend into the
// credential registry and scans the requested surfaces for leaked values.
// Findings are reported through the audit log and printed to the writer.
// Backend failures are reported but do not abort the other backends.
func RunScanLeaks(
	ctx context.Context,
	writer io.Writer,
	logFiles []string,
	environment bool,
	gitRepoPath string,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	if len(logFiles) == 0 && !environment && gitRepoPath == "" {
		return fmt.Errorf("nothing to scan: pass --log-file, --environment or --git-repo")
	}

	registry, err := container.CredentialRegistry()
	if err != nil {
		return fmt.Errorf("failed to initialize credential registry: %w", err)
	}

	backend, err := container.SecretBackend()
	if err != nil {
		return fmt.Errorf("failed to initialize secret backend: %w", err)
	}

	names, err := backend.ListSecrets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list secrets: %w", err)
	}

	loaded := 0
	for _, name := range names {
		entry, err := backend.GetSecret(ctx, name)
		if err != nil {
			logger.Warn("skipping unreadable secret", slog.String("name", name), slog.Any("error", err))
			continue
		}
		if _, err := registry.Register(ctx, name, []byte(entry.Value), credentialUseCase.RegisterOptions{}); err != nil {
			logger.Warn("skipping unregistrable secret", slog.String("name", name), slog.Any("error", err))
			continue
		}
		loaded++
	}

	logger.Info("scanning for leaked credentials",
		slog.Int("credentials", loaded),
		slog.Int("log_files", len(logFiles)),
		slog.Bool("environment", environment),
		slog.String("git_repo", gitRepoPath),
	)

	scanner, err := container.LeakScanner()
	if err != nil {
		return fmt.Errorf("failed to initialize leak scanner: %w", err)
	}

	report, err := scanner.Scan(ctx, credentialUseCase.ScanOptions{
		LogFiles:    logFiles,
		Environment: environment,
		GitRepoPath: gitRepoPath,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Leak Scan Report\n")
	_, _ = fmt.Fprintf(writer, "================\n\n")
	_, _ = fmt.Fprintf(writer, "Credentials scanned: %d\n", loaded)
	_, _ = fmt.Fprintf(writer, "Leaks flagged:       %d\n", report.Flagged)

	for _, leak := range registry.Leaks(ctx) {
		_, _ = fmt.Fprintf(writer, "  - [%s] %s (%s): %s\n", leak.Severity, leak.CredentialID, leak.Source, leak.Evidence)
	}

	if len(report.BackendErrors) > 0 {
		_, _ = fmt.Fprintf(writer, "\nBackend errors:\n")
		for _, backendErr := range report.BackendErrors {
			_, _ = fmt.Fprintf(writer, "  - %v\n", backendErr)
		}
	}

	if report.Flagged > 0 {
		return fmt.Errorf("scan flagged %d leaked credential(s)", report.Flagged)
	}

	return nil
}
