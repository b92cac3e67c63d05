// Package storage defines the persistence layer behind the indexer
// and the directory cache. Amounts are stored as decimal strings
// because uint256 values do not fit any SQL integer type.
package storage

import (
	"context"
	"time"
)

// StoreRecord is one cached row of the on-chain store directory.
type StoreRecord struct {
	ChainID      uint64
	Address      string // hex, lowercase
	Owner        string
	Name         string
	Description  string
	TokenAddress string
	IsActive     bool
	CreatedAt    int64 // unix seconds, from the contract
	UpdatedAt    time.Time
}

// PurchaseRecord is one ProductPurchased event observed on chain.
// (chain_id, tx_hash, log_index) identifies the event uniquely.
type PurchaseRecord struct {
	ChainID      uint64
	StoreAddress string
	TxHash       string
	LogIndex     uint32
	BlockNumber  uint64
	ProductID    uint64
	Buyer        string
	Quantity     string
	TotalPrice   string
	Timestamp    int64
}

// DirectoryStore caches store directory rows. Rows are refreshed in
// place as the indexer observes new state.
type DirectoryStore interface {
	// Upsert inserts the record or replaces the existing row with the
	// same (chain_id, address).
	Upsert(ctx context.Context, r *StoreRecord) error

	// GetByAddress retrieves one store. Returns ErrNotFound if absent.
	GetByAddress(ctx context.Context, chainID uint64, address string) (*StoreRecord, error)

	// ListByChain retrieves every store on a chain, oldest first.
	ListByChain(ctx context.Context, chainID uint64) ([]*StoreRecord, error)

	// ListByOwner retrieves the stores of one owner, oldest first.
	ListByOwner(ctx context.Context, chainID uint64, owner string) ([]*StoreRecord, error)
}

// PurchaseStore records observed purchases. Append-only: re-inserting
// an event returns ErrDuplicateKey.
type PurchaseStore interface {
	// Insert adds one purchase. Returns ErrDuplicateKey if
	// (chain_id, tx_hash, log_index) exists.
	Insert(ctx context.Context, p *PurchaseRecord) error

	// InsertBulk adds multiple purchases atomically. Fails the entire
	// batch on any duplicate.
	InsertBulk(ctx context.Context, purchases []*PurchaseRecord) error

	// GetByStore retrieves all purchases of a store, ordered by block
	// then log index ASC.
	GetByStore(ctx context.Context, chainID uint64, storeAddress string) ([]*PurchaseRecord, error)

	// GetByBuyer retrieves all purchases of a buyer across stores,
	// ordered by block then log index ASC.
	GetByBuyer(ctx context.Context, chainID uint64, buyer string) ([]*PurchaseRecord, error)
}

// CheckpointStore remembers how far the indexer has scanned, so a
// restart resumes instead of rescanning from genesis.
type CheckpointStore interface {
	// Get returns the last indexed block for a chain. Returns
	// ErrNotFound before the first checkpoint.
	Get(ctx context.Context, chainID uint64) (uint64, error)

	// Put records the last indexed block for a chain.
	Put(ctx context.Context, chainID uint64, block uint64) error
}
