package storage

import (
	"context"
	"sync"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// MockStorage is a mock implementation of Storage for testing. It stores
// progress in memory and can be told to fail.
type MockStorage struct {
	*MemoryStorage

	mu        sync.RWMutex
	pingError error
	saveError error
	loadError error
	saves     int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{MemoryStorage: NewMemoryStorage()}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on save with the given error
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetLoadError configures the mock to fail on load with the given error
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// Saves returns how many SaveProgress calls succeeded.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) SaveProgress(ctx context.Context, key string, p *conversation.Progress) error {
	m.mu.Lock()
	if m.saveError != nil {
		err := m.saveError
		m.mu.Unlock()
		return err
	}
	m.saves++
	m.mu.Unlock()
	return m.MemoryStorage.SaveProgress(ctx, key, p)
}

func (m *MockStorage) LoadProgress(ctx context.Context, key string) (*conversation.Progress, error) {
	m.mu.RLock()
	err := m.loadError
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return m.MemoryStorage.LoadProgress(ctx, key)
}
