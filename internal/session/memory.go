package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. Used in tests and
// by the server, which has no user config dir.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.state = &copied
	return nil
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, ErrNotFound
	}
	copied := *m.state
	return &copied, nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
