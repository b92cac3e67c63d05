package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"block-bazaar/internal/storage"
)

// DirectoryStore implements storage.DirectoryStore using PostgreSQL.
type DirectoryStore struct {
	pool *Pool
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(pool *Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

var _ storage.DirectoryStore = (*DirectoryStore)(nil)

// Upsert inserts the record or replaces the row with the same
// (chain_id, address).
func (s *DirectoryStore) Upsert(ctx context.Context, r *storage.StoreRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO store_directory (
			chain_id, address, owner, name, description, token_address, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (chain_id, address) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			token_address = EXCLUDED.token_address,
			is_active = EXCLUDED.is_active,
			created_at = EXCLUDED.created_at,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		r.ChainID,
		strings.ToLower(r.Address),
		strings.ToLower(r.Owner),
		r.Name,
		r.Description,
		r.TokenAddress,
		r.IsActive,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert store: %w", err)
	}
	return nil
}

// GetByAddress retrieves one store. Returns ErrNotFound if absent.
func (s *DirectoryStore) GetByAddress(ctx context.Context, chainID uint64, address string) (*storage.StoreRecord, error) {
	query := `
		SELECT chain_id, address, owner, name, description, token_address, is_active, created_at, updated_at
		FROM store_directory
		WHERE chain_id = $1 AND address = $2
	`

	row := s.pool.QueryRow(ctx, query, chainID, strings.ToLower(address))

	var r storage.StoreRecord
	err := row.Scan(
		&r.ChainID,
		&r.Address,
		&r.Owner,
		&r.Name,
		&r.Description,
		&r.TokenAddress,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get store by address: %w", err)
	}
	return &r, nil
}

// ListByChain retrieves every store on a chain, oldest first.
func (s *DirectoryStore) ListByChain(ctx context.Context, chainID uint64) ([]*storage.StoreRecord, error) {
	query := `
		SELECT chain_id, address, owner, name, description, token_address, is_active, created_at, updated_at
		FROM store_directory
		WHERE chain_id = $1
		ORDER BY created_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, chainID)
	if err != nil {
		return nil, fmt.Errorf("list stores by chain: %w", err)
	}
	defer rows.Close()

	return scanStores(rows)
}

// ListByOwner retrieves the stores of one owner, oldest first.
func (s *DirectoryStore) ListByOwner(ctx context.Context, chainID uint64, owner string) ([]*storage.StoreRecord, error) {
	query := `
		SELECT chain_id, address, owner, name, description, token_address, is_active, created_at, updated_at
		FROM store_directory
		WHERE chain_id = $1 AND owner = $2
		ORDER BY created_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, chainID, strings.ToLower(owner))
	if err != nil {
		return nil, fmt.Errorf("list stores by owner: %w", err)
	}
	defer rows.Close()

	return scanStores(rows)
}

// scanStores scans multiple rows into a slice of StoreRecord.
func scanStores(rows pgx.Rows) ([]*storage.StoreRecord, error) {
	var stores []*storage.StoreRecord

	for rows.Next() {
		var r storage.StoreRecord
		err := rows.Scan(
			&r.ChainID,
			&r.Address,
			&r.Owner,
			&r.Name,
			&r.Description,
			&r.TokenAddress,
			&r.IsActive,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		stores = append(stores, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store rows: %w", err)
	}
	return stores, nil
}
