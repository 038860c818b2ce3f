package state

import (
	"context"
	"sync"
)

// MemoryStore хранит состояние в памяти процесса.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get возвращает значение.
func (s *MemoryStore) Get(_ context.Context, handle, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[PhysicalKey(handle, key)]
	return v, ok, nil
}

// Set сохраняет значение.
func (s *MemoryStore) Set(_ context.Context, handle, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[PhysicalKey(handle, key)] = value
	return nil
}

// Snapshot возвращает копию всех значений.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
