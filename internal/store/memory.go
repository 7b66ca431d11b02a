package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Several instances sharing one Memory behave
// like tabs sharing one origin's storage.
type Memory struct {
	mu      sync.RWMutex
	values  map[string]string
	failing bool
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// SetFailing makes every subsequent call return ErrUnavailable until reset.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	m.failing = failing
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return "", false, ErrUnavailable
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}
