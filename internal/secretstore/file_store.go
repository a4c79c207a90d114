package secretstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	cryptoDomain "github.com/agentsec/secrets/internal/crypto/domain"
	cryptoService "github.com/agentsec/secrets/internal/crypto/service"
	apperrors "github.com/agentsec/secrets/internal/errors"
)

// FileStore persists secrets as a single encrypted file. The on-disk format
// is hex(nonce):hex(tag):hex(ciphertext) wrapping a JSON map of
// name -> entry; the whole map is sealed as one blob so partial reads are
// impossible.
type FileStore struct {
	mu     sync.Mutex
	path   string
	engine *cryptoService.Engine
}

// NewFileStore creates an encrypted file backend at path using engine for
// sealing. The file is created on first write.
func NewFileStore(path string, engine *cryptoService.Engine) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, apperrors.Wrap(err, "failed to create secret store directory")
		}
	}
	return &FileStore{path: path, engine: engine}, nil
}

func (s *FileStore) GetSecret(ctx context.Context, name string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[name]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return &entry, nil
}

func (s *FileStore) ListSecrets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) SetSecret(ctx context.Context, name, value string, metadata map[string]string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := Entry{
		Name:      name,
		Value:     value,
		Version:   1,
		CreatedAt: now,
		Metadata:  metadata,
	}
	if existing, ok := entries[name]; ok {
		entry.Version = existing.Version + 1
		entry.CreatedAt = existing.CreatedAt
		entry.UpdatedAt = now
	}
	entries[name] = entry

	if err := s.saveLocked(entries); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *FileStore) DeleteSecret(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if _, ok := entries[name]; !ok {
		return false, nil
	}
	delete(entries, name)

	if err := s.saveLocked(entries); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.loadLocked()
	return err
}

// loadLocked reads and decrypts the whole store. A missing file is an empty
// store, not an error.
func (s *FileStore) loadLocked() (map[string]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Entry), nil
		}
		return nil, apperrors.Wrap(ErrBackendUnavailable, err.Error())
	}

	blob, err := parseFileBlob(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, err
	}

	plaintext, err := s.engine.Decrypt(blob, nil)
	if err != nil {
		return nil, err
	}

	var entries map[string]Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode secret store")
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	return entries, nil
}

func (s *FileStore) saveLocked(entries map[string]Entry) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode secret store")
	}

	blob, err := s.engine.Encrypt(plaintext, nil)
	if err != nil {
		return err
	}

	encoded := hex.EncodeToString(blob.Nonce) + ":" +
		hex.EncodeToString(blob.Tag) + ":" +
		hex.EncodeToString(blob.Ciphertext)
	if err := os.WriteFile(s.path, []byte(encoded), 0o600); err != nil {
		return apperrors.Wrap(ErrBackendUnavailable, err.Error())
	}
	return nil
}

// parseFileBlob splits the colon-separated hex triple. Malformed input gets
// the generic decryption error so the format reveals nothing about which
// part was wrong.
func parseFileBlob(encoded string) (cryptoDomain.EncryptedBlob, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return cryptoDomain.EncryptedBlob{}, cryptoDomain.ErrDecryptionFailed
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != cryptoDomain.NonceSize {
		return cryptoDomain.EncryptedBlob{}, cryptoDomain.ErrDecryptionFailed
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != cryptoDomain.TagSize {
		return cryptoDomain.EncryptedBlob{}, cryptoDomain.ErrDecryptionFailed
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return cryptoDomain.EncryptedBlob{}, cryptoDomain.ErrDecryptionFailed
	}
	return cryptoDomain.EncryptedBlob{Nonce: nonce, Tag: tag, Ciphertext: ciphertext}, nil
}
