package store

import (
	"context"
	"sync"
)

// Memory is a process-local TokenStore. It counts writes so callers can
// assert that nothing was persisted.
type Memory struct {
	mu     sync.Mutex
	token  string
	Saves  int
	Clears int
}

func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) LoadToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *Memory) SaveToken(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.Saves++
	m.mu.Unlock()
	return nil
}

func (m *Memory) ClearToken(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.Clears++
	m.mu.Unlock()
	return nil
}
