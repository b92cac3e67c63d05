package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"block-bazaar/internal/storage"
)

// PurchaseStore implements storage.PurchaseStore using PostgreSQL.
type PurchaseStore struct {
	pool *Pool
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *Pool) *PurchaseStore {
	return &PurchaseStore{pool: pool}
}

var _ storage.PurchaseStore = (*PurchaseStore)(nil)

const insertPurchaseQuery = `
	INSERT INTO purchases (
		chain_id, store_address, tx_hash, log_index, block_number, product_id, buyer, quantity, total_price, timestamp
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func purchaseArgs(p *storage.PurchaseRecord) []interface{} {
	return []interface{}{
		p.ChainID,
		strings.ToLower(p.StoreAddress),
		strings.ToLower(p.TxHash),
		p.LogIndex,
		p.BlockNumber,
		p.ProductID,
		strings.ToLower(p.Buyer),
		p.Quantity,
		p.TotalPrice,
		p.Timestamp,
	}
}

// Insert adds one purchase. Returns ErrDuplicateKey if
// (chain_id, tx_hash, log_index) exists.
func (s *PurchaseStore) Insert(ctx context.Context, p *storage.PurchaseRecord) error {
	if p == nil || p.TxHash == "" || p.StoreAddress == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertPurchaseQuery, purchaseArgs(p)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// InsertBulk adds multiple purchases atomically. Fails the entire
// batch on any duplicate.
func (s *PurchaseStore) InsertBulk(ctx context.Context, purchases []*storage.PurchaseRecord) error {
	if len(purchases) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range purchases {
		if p == nil || p.TxHash == "" || p.StoreAddress == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertPurchaseQuery, purchaseArgs(p)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert purchase in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByStore retrieves all purchases of a store, ordered by block
// then log index ASC.
func (s *PurchaseStore) GetByStore(ctx context.Context, chainID uint64, storeAddress string) ([]*storage.PurchaseRecord, error) {
	query := `
		SELECT chain_id, store_address, tx_hash, log_index, block_number, product_id, buyer, quantity, total_price, timestamp
		FROM purchases
		WHERE chain_id = $1 AND store_address = $2
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, chainID, strings.ToLower(storeAddress))
	if err != nil {
		return nil, fmt.Errorf("get purchases by store: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// GetByBuyer retrieves all purchases of a buyer, ordered by block
// then log index ASC.
func (s *PurchaseStore) GetByBuyer(ctx context.Context, chainID uint64, buyer string) ([]*storage.PurchaseRecord, error) {
	query := `
		SELECT chain_id, store_address, tx_hash, log_index, block_number, product_id, buyer, quantity, total_price, timestamp
		FROM purchases
		WHERE chain_id = $1 AND buyer = $2
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, chainID, strings.ToLower(buyer))
	if err != nil {
		return nil, fmt.Errorf("get purchases by buyer: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// scanPurchases scans multiple rows into a slice of PurchaseRecord.
func scanPurchases(rows pgx.Rows) ([]*storage.PurchaseRecord, error) {
	var purchases []*storage.PurchaseRecord

	for rows.Next() {
		var p storage.PurchaseRecord
		err := rows.Scan(
			&p.ChainID,
			&p.StoreAddress,
			&p.TxHash,
			&p.LogIndex,
			&p.BlockNumber,
			&p.ProductID,
			&p.Buyer,
			&p.Quantity,
			&p.TotalPrice,
			&p.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		purchases = append(purchases, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return purchases, nil
}
