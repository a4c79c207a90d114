package usecase

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	credentialDomain "github.com/agentsec/secrets/internal/credential/domain"
	"github.com/agentsec/secrets/internal/sensitive"
)

// ScanOptions selects which leak scan backends run.
type ScanOptions struct {
	// LogFiles are paths scanned line by line for name=token patterns.
	LogFiles []string

	// Environment scans the process environment for suspicious variables.
	Environment bool

	// GitRepoPath, when set, scans the repository's commit history.
	GitRepoPath string
}

// ScanReport summarizes one leak scan run.
type ScanReport struct {
	// Flagged counts matches turned into leak reports.
	Flagged int

	// BackendErrors holds per-backend failures. A failing backend does not
	// abort the others.
	BackendErrors []error
}

// LeakScanner runs best-effort heuristic scans over logs, the process
// environment, and git history, reporting every match to the registry.
type LeakScanner struct {
	registry CredentialRegistry
	policy   *sensitive.Policy
	environ  func() []string
	log      *slog.Logger
}

// ScannerOption configures a LeakScanner.
type ScannerOption func(*LeakScanner)

// WithEnviron overrides the environment source.
func WithEnviron(environ func() []string) ScannerOption {
	return func(s *LeakScanner) { s.environ = environ }
}

// WithScannerLogger sets the slog logger.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *LeakScanner) { s.log = logger }
}

// NewLeakScanner creates a scanner reporting into registry. policy supplies
// the sensitive-name heuristics shared with the audit redactor.
func NewLeakScanner(registry CredentialRegistry, policy *sensitive.Policy, opts ...ScannerOption) *LeakScanner {
	s := &LeakScanner{
		registry: registry,
		policy:   policy,
		environ:  os.Environ,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs the selected backends concurrently. The returned error is nil
// unless the scan as a whole could not run; individual backend failures are
// collected in the report.
func (s *LeakScanner) Scan(ctx context.Context, opts ScanOptions) (ScanReport, error) {
	records := s.registry.List(ctx)

	var (
		mu     sync.Mutex
		report ScanReport
	)
	flag := func(record credentialDomain.Record, source credentialDomain.LeakSource, evidence string, severity credentialDomain.Severity) {
		if _, err := s.registry.ReportLeak(ctx, record.ID, source, evidence, severity); err != nil {
			s.log.Warn("failed to report leak",
				slog.String("credential_id", record.ID),
				slog.Any("error", err),
			)
			return
		}
		mu.Lock()
		report.Flagged++
		mu.Unlock()
	}
	backendFailed := func(backend string, err error) {
		s.log.Warn("leak scan backend failed",
			slog.String("backend", backend),
			slog.Any("error", err),
		)
		mu.Lock()
		report.BackendErrors = append(report.BackendErrors, fmt.Errorf("%s: %w", backend, err))
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	if opts.Environment {
		g.Go(func() error {
			s.scanEnvironment(records, flag)
			return nil
		})
	}
	for _, path := range opts.LogFiles {
		g.Go(func() error {
			if err := s.scanLogFile(ctx, path, records, flag); err != nil {
				backendFailed("log:"+path, err)
			}
			return nil
		})
	}
	if opts.GitRepoPath != "" {
		g.Go(func() error {
			if err := s.scanGitHistory(ctx, opts.GitRepoPath, records, flag); err != nil {
				backendFailed("git_history", err)
			}
			return nil
		})
	}

	// Backends never return errors through the group; failures are
	// collected so one backend cannot cancel the others.
	_ = g.Wait()
	return report, nil
}

// scanEnvironment flags environment variables whose name both matches the
// sensitive deny-list and contains a registered credential's name.
func (s *LeakScanner) scanEnvironment(records []credentialDomain.Record, flag func(credentialDomain.Record, credentialDomain.LeakSource, string, credentialDomain.Severity)) {
	for _, kv := range s.environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !s.policy.IsSensitiveField(name) {
			continue
		}
		lower := strings.ToLower(name)
		for _, record := range records {
			if record.Name == "" || !strings.Contains(lower, strings.ToLower(record.Name)) {
				continue
			}
			flag(record, credentialDomain.LeakSourceEnvironment,
				fmt.Sprintf("environment variable %q matches credential %q", name, record.Name),
				credentialDomain.SeverityHigh,
			)
		}
	}
}

// scanLogFile flags lines containing name=token assignments for any
// registered credential name.
func (s *LeakScanner) scanLogFile(ctx context.Context, path string, records []credentialDomain.Record, flag func(credentialDomain.Record, credentialDomain.LeakSource, string, credentialDomain.Severity)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	patterns := tokenPatterns(records)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := scanner.Text()
		for i, pattern := range patterns {
			if pattern != nil && pattern.MatchString(line) {
				flag(records[i], credentialDomain.LeakSourceLog,
					fmt.Sprintf("%s:%d matches credential %q", path, lineNo, records[i].Name),
					credentialDomain.SeverityCritical,
				)
			}
		}
	}
	return scanner.Err()
}

// scanGitHistory runs git log -p and flags patch lines containing name=token
// assignments for a registered credential name.
func (s *LeakScanner) scanGitHistory(ctx context.Context, repoPath string, records []credentialDomain.Record, flag func(credentialDomain.Record, credentialDomain.LeakSource, string, credentialDomain.Severity)) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "log", "-p", "--no-color")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	patterns := tokenPatterns(records)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for i, pattern := range patterns {
			if pattern == nil || seen[records[i].ID] || !pattern.MatchString(line) {
				continue
			}
			// One report per credential per scan keeps git history noise
			// from flooding the audit log.
			seen[records[i].ID] = true
			flag(records[i], credentialDomain.LeakSourceGitHistory,
				fmt.Sprintf("git history in %s matches credential %q", repoPath, records[i].Name),
				credentialDomain.SeverityCritical,
			)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return err
	}
	return cmd.Wait()
}

func tokenPatterns(records []credentialDomain.Record) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(records))
	for i, record := range records {
		if record.Name == "" {
			continue
		}
		patterns[i] = sensitive.TokenPattern(record.Name)
	}
	return patterns
}
