package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// MemoryStorage keeps progress in process memory. Progress is lost on restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	progress map[string][]byte
}

// Ensure MemoryStorage implements Storage interface
var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{progress: make(map[string][]byte)}
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }

// SaveProgress stores a JSON copy so later mutation of p is not observed.
func (m *MemoryStorage) SaveProgress(ctx context.Context, key string, p *conversation.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[key] = data
	return nil
}

func (m *MemoryStorage) LoadProgress(ctx context.Context, key string) (*conversation.Progress, error) {
	m.mu.RLock()
	data, ok := m.progress[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var p conversation.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (m *MemoryStorage) DeleteProgress(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.progress)
}
