package keystore

import (
	"context"
	"sync"

	"github.com/fieldtrack/assetsync/internal/common"
)

// Memory is a deterministic in-process Store for tests and composition
// roots without a platform secure enclave.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte

	// Denied simulates the platform refusing access (failed biometric
	// check, storage cleared). When true, GetItem always fails.
	Denied bool
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

func (m *Memory) SetItem(_ context.Context, key string, value []byte, _ Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.items[key] = cp
	return nil
}

func (m *Memory) GetItem(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Denied {
		return nil, common.ErrKeyUnavailable
	}
	v, ok := m.items[key]
	if !ok {
		return nil, common.ErrKeyUnavailable
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}
