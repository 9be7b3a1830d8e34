package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONFileStore persists records in a single JSON object file, read and
// rewritten whole on every write. A store-wide mutex serializes access;
// the file is replaced atomically via a temp file rename.
type JSONFileStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewJSONFileStore creates a store backed by the file at path. The file
// is created on first write; a missing file reads as an empty store.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Save implements Store.
func (s *JSONFileStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	records := s.read()
	records[key] = value
	return s.write(records)
}

// Load implements Store.
func (s *JSONFileStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	records := s.read()
	value, ok := records[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// Delete implements Store.
func (s *JSONFileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	records := s.read()
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.write(records)
}

// Close implements Store.
func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// read loads the backing file. A missing file is an empty store; a
// malformed file is treated as empty with a warning rather than blocking
// every future operation.
func (s *JSONFileStore) read() map[string]string {
	records := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("record store unreadable, starting empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
		return records
	}
	if len(data) == 0 {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("record store malformed, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return make(map[string]string)
	}
	return records
}

func (s *JSONFileStore) write(records map[string]string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".records-*.json")
	if err != nil {
		return fmt.Errorf("write record store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write record store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write record store: %w", err)
	}
	return nil
}
