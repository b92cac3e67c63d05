package memory

import (
	"context"
	"sync"

	"block-bazaar/internal/storage"
)

// CheckpointStore is an in-memory implementation of
// storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[uint64]uint64
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{data: make(map[uint64]uint64)}
}

// Get returns the last indexed block. Returns ErrNotFound before the
// first checkpoint.
func (s *CheckpointStore) Get(_ context.Context, chainID uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.data[chainID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return block, nil
}

// Put records the last indexed block for a chain.
func (s *CheckpointStore) Put(_ context.Context, chainID uint64, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[chainID] = block
	return nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
