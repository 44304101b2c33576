package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// KVStore persists every key in one JSON document on disk, the on-device
// counterpart of browser local storage.
type KVStore struct {
	filename string
	mu       sync.Mutex
}

// NewKVStore creates the backing file (and its directory) when missing.
func NewKVStore(filename string) (*KVStore, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := os.WriteFile(filename, []byte("{}"), 0o600); err != nil {
			return nil, fmt.Errorf("create store %s: %w", filename, err)
		}
	}
	return &KVStore{filename: filename}, nil
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	value, ok := m[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return []byte(value), nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = string(value)
	return s.save(m)
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

func (s *KVStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.filename, err)
	}
	m := make(map[string]string)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filename, err)
	}
	return m, nil
}

// save writes to a temp file and renames it so a crash never leaves a torn document.
func (s *KVStore) save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filename); err != nil {
		return fmt.Errorf("replace %s: %w", s.filename, err)
	}
	return nil
}
