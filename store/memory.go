package store

import (
	"context"
	"sync"

	"github.com/onnwee/chatgov/governance"
)

// Memory keeps encoded snapshots in a map. Values are stored as JSON so callers
// never share day slices with the store.
type Memory struct {
	mu    sync.RWMutex
	saves map[string][]byte
}

func NewMemory() *Memory { return &Memory{saves: make(map[string][]byte)} }

func (m *Memory) Load(_ context.Context, saveID string) (governance.Snapshot, bool, error) {
	if saveID == "" {
		return governance.Snapshot{}, false, ErrEmptySaveID
	}
	m.mu.RLock()
	b, ok := m.saves[saveID]
	m.mu.RUnlock()
	if !ok {
		return governance.Snapshot{}, false, nil
	}
	s, err := decode(b)
	if err != nil {
		return governance.Snapshot{}, false, err
	}
	return s, true, nil
}

func (m *Memory) Save(_ context.Context, saveID string, s governance.Snapshot) error {
	if saveID == "" {
		return ErrEmptySaveID
	}
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.saves[saveID] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
