package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore хранит состояние в JSON-файле.
//
// Файл перечитывается на каждый Get и перезаписывается целиком на каждый Set
// через временный файл и rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore создаёт FileStore. Файл создаётся при первой записи.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path возвращает путь к файлу.
func (s *FileStore) Path() string {
	return s.path
}

// Get возвращает значение.
func (s *FileStore) Get(_ context.Context, handle, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[PhysicalKey(handle, key)]
	return v, ok, nil
}

// Set сохраняет значение.
func (s *FileStore) Set(_ context.Context, handle, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data[PhysicalKey(handle, key)] = value
	return s.save(data)
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileStore) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
