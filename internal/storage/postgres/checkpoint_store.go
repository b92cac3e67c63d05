package postgres

import (
	"context"
	"fmt"

	"block-bazaar/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using
// PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Get returns the last indexed block for a chain. Returns
// ErrNotFound before the first checkpoint.
func (s *CheckpointStore) Get(ctx context.Context, chainID uint64) (uint64, error) {
	var block uint64
	err := s.pool.QueryRow(ctx,
		`SELECT last_block FROM index_checkpoints WHERE chain_id = $1`,
		chainID,
	).Scan(&block)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	return block, nil
}

// Put records the last indexed block for a chain.
func (s *CheckpointStore) Put(ctx context.Context, chainID uint64, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO index_checkpoints (chain_id, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO UPDATE SET
			last_block = EXCLUDED.last_block,
			updated_at = now()
	`, chainID, block)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}
