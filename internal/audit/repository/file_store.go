// Package repository provides the append-only audit stores: a newline-
// delimited JSON file store and SQL stores for PostgreSQL and MySQL.
package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	auditDomain "github.com/agentsec/secrets/internal/audit/domain"
)

// FileStore persists audit events as newline-delimited JSON, one
// independently verifiable event per line.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewFileStore creates a file store at path, creating parent directories as
// needed. The file itself is created on first append.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	return &FileStore{path: path, log: logger}, nil
}

// Append writes each event as one JSON line. The file is opened in append
// mode per call so external rotation keeps working.
func (s *FileStore) Append(ctx context.Context, events []auditDomain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode audit event: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write audit events: %w", err)
	}
	return f.Sync()
}

// Scan reads events in file order. Unparseable lines are logged and skipped;
// a missing file means no events yet, not an error.
func (s *FileStore) Scan(ctx context.Context, fn func(auditDomain.Event) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var event auditDomain.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			s.log.Debug("skipping unparseable audit log line", slog.Any("error", err))
			continue
		}
		if !fn(event) {
			return nil
		}
	}
	return scanner.Err()
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }
