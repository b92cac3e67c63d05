package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"block-bazaar/internal/storage"
)

// PurchaseEventStore implements storage.PurchaseStore using
// ClickHouse, plus the aggregation queries the reporting side needs.
// MergeTree does not enforce uniqueness, so duplicates are detected
// with explicit lookups before insert.
type PurchaseEventStore struct {
	conn *Conn
}

// NewPurchaseEventStore creates a new PurchaseEventStore.
func NewPurchaseEventStore(conn *Conn) *PurchaseEventStore {
	return &PurchaseEventStore{conn: conn}
}

var _ storage.PurchaseStore = (*PurchaseEventStore)(nil)

// Insert adds one purchase. Returns ErrDuplicateKey if
// (chain_id, tx_hash, log_index) exists.
func (s *PurchaseEventStore) Insert(ctx context.Context, p *storage.PurchaseRecord) error {
	return s.InsertBulk(ctx, []*storage.PurchaseRecord{p})
}

// InsertBulk adds multiple purchases in one batch. Fails the entire
// batch on any duplicate, existing or intra-batch.
func (s *PurchaseEventStore) InsertBulk(ctx context.Context, purchases []*storage.PurchaseRecord) error {
	if len(purchases) == 0 {
		return nil
	}

	type key struct {
		chainID  uint64
		txHash   string
		logIndex uint32
	}
	seen := make(map[key]struct{}, len(purchases))
	for _, p := range purchases {
		if p == nil || p.TxHash == "" || p.StoreAddress == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.ChainID, strings.ToLower(p.TxHash), p.LogIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range purchases {
		exists, err := s.exists(ctx, p.ChainID, strings.ToLower(p.TxHash), p.LogIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO purchase_events (
			chain_id, store_address, tx_hash, log_index, block_number,
			product_id, buyer, quantity, total_price, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range purchases {
		err = batch.Append(
			p.ChainID,
			strings.ToLower(p.StoreAddress),
			strings.ToLower(p.TxHash),
			p.LogIndex,
			p.BlockNumber,
			p.ProductID,
			strings.ToLower(p.Buyer),
			p.Quantity,
			p.TotalPrice,
			time.Unix(p.Timestamp, 0).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByStore retrieves all purchases of a store, ordered by block
// then log index ASC.
func (s *PurchaseEventStore) GetByStore(ctx context.Context, chainID uint64, storeAddress string) ([]*storage.PurchaseRecord, error) {
	query := selectPurchases + `
		WHERE chain_id = ? AND store_address = ?
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, chainID, strings.ToLower(storeAddress))
	if err != nil {
		return nil, fmt.Errorf("query by store: %w", err)
	}
	defer rows.Close()

	return s.scanPurchases(rows)
}

// GetByBuyer retrieves all purchases of a buyer, ordered by block
// then log index ASC.
func (s *PurchaseEventStore) GetByBuyer(ctx context.Context, chainID uint64, buyer string) ([]*storage.PurchaseRecord, error) {
	query := selectPurchases + `
		WHERE chain_id = ? AND buyer = ?
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, chainID, strings.ToLower(buyer))
	if err != nil {
		return nil, fmt.Errorf("query by buyer: %w", err)
	}
	defer rows.Close()

	return s.scanPurchases(rows)
}

const selectPurchases = `
	SELECT chain_id, store_address, tx_hash, log_index, block_number,
	       product_id, buyer, quantity, total_price, toUnixTimestamp(timestamp)
	FROM purchase_events
`

type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

func (s *PurchaseEventStore) scanPurchases(rows chRows) ([]*storage.PurchaseRecord, error) {
	var purchases []*storage.PurchaseRecord

	for rows.Next() {
		var p storage.PurchaseRecord
		var ts uint32
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
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		p.Timestamp = int64(ts)
		purchases = append(purchases, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return purchases, nil
}

func (s *PurchaseEventStore) exists(ctx context.Context, chainID uint64, txHash string, logIndex uint32) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM purchase_events
		WHERE chain_id = ? AND tx_hash = ? AND log_index = ?
	`, chainID, txHash, logIndex).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RevenuePoint is one day of revenue for a store.
type RevenuePoint struct {
	Day       time.Time
	Revenue   float64
	Purchases uint64
}

// DailyRevenue aggregates a store's revenue per day, oldest first.
// Revenue is approximate: uint256 amounts are summed as Float64.
func (s *PurchaseEventStore) DailyRevenue(ctx context.Context, chainID uint64, storeAddress string) ([]*RevenuePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT toStartOfDay(timestamp) AS day,
		       sum(toFloat64OrZero(total_price)) AS revenue,
		       count(*) AS purchases
		FROM purchase_events
		WHERE chain_id = ? AND store_address = ?
		GROUP BY day
		ORDER BY day ASC
	`, chainID, strings.ToLower(storeAddress))
	if err != nil {
		return nil, fmt.Errorf("query daily revenue: %w", err)
	}
	defer rows.Close()

	var points []*RevenuePoint
	for rows.Next() {
		var p RevenuePoint
		if err := rows.Scan(&p.Day, &p.Revenue, &p.Purchases); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revenue rows: %w", err)
	}
	return points, nil
}

// BuyerTotal is one buyer's aggregate spend at a store.
type BuyerTotal struct {
	Buyer     string
	Spent     float64
	Purchases uint64
}

// TopBuyers returns the heaviest spenders of a store, biggest first.
func (s *PurchaseEventStore) TopBuyers(ctx context.Context, chainID uint64, storeAddress string, limit int) ([]*BuyerTotal, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT buyer,
		       sum(toFloat64OrZero(total_price)) AS spent,
		       count(*) AS purchases
		FROM purchase_events
		WHERE chain_id = ? AND store_address = ?
		GROUP BY buyer
		ORDER BY spent DESC
		LIMIT ?
	`, chainID, strings.ToLower(storeAddress), limit)
	if err != nil {
		return nil, fmt.Errorf("query top buyers: %w", err)
	}
	defer rows.Close()

	var totals []*BuyerTotal
	for rows.Next() {
		var t BuyerTotal
		if err := rows.Scan(&t.Buyer, &t.Spent, &t.Purchases); err != nil {
			return nil, fmt.Errorf("scan buyer row: %w", err)
		}
		totals = append(totals, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buyer rows: %w", err)
	}
	return totals, nil
}
