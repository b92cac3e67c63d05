package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"block-bazaar/internal/storage"
)

// PurchaseStore is an in-memory implementation of
// storage.PurchaseStore.
type PurchaseStore struct {
	mu   sync.RWMutex
	data map[string]*storage.PurchaseRecord // keyed by chain|tx|log
}

// NewPurchaseStore creates an empty in-memory purchase store.
func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{
		data: make(map[string]*storage.PurchaseRecord),
	}
}

func purchaseKey(chainID uint64, txHash string, logIndex uint32) string {
	return fmt.Sprintf("%d|%s|%d", chainID, strings.ToLower(txHash), logIndex)
}

// Insert adds one purchase. Returns ErrDuplicateKey if exists.
func (s *PurchaseStore) Insert(_ context.Context, p *storage.PurchaseRecord) error {
	if p == nil || p.TxHash == "" || p.StoreAddress == "" {
		return storage.ErrInvalidInput
	}

	key := purchaseKey(p.ChainID, p.TxHash, p.LogIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = normalize(p)
	return nil
}

// InsertBulk adds multiple purchases atomically. Fails the entire
// batch on any duplicate, existing or intra-batch.
func (s *PurchaseStore) InsertBulk(_ context.Context, purchases []*storage.PurchaseRecord) error {
	if len(purchases) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(purchases))
	for _, p := range purchases {
		if p == nil || p.TxHash == "" || p.StoreAddress == "" {
			return storage.ErrInvalidInput
		}
		key := purchaseKey(p.ChainID, p.TxHash, p.LogIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range purchases {
		s.data[purchaseKey(p.ChainID, p.TxHash, p.LogIndex)] = normalize(p)
	}
	return nil
}

// GetByStore retrieves all purchases of a store, ordered by block
// then log index ASC.
func (s *PurchaseStore) GetByStore(_ context.Context, chainID uint64, storeAddress string) ([]*storage.PurchaseRecord, error) {
	storeAddress = strings.ToLower(storeAddress)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PurchaseRecord
	for _, p := range s.data {
		if p.ChainID == chainID && p.StoreAddress == storeAddress {
			copied := *p
			result = append(result, &copied)
		}
	}
	sortPurchases(result)
	return result, nil
}

// GetByBuyer retrieves all purchases of a buyer, ordered by block
// then log index ASC.
func (s *PurchaseStore) GetByBuyer(_ context.Context, chainID uint64, buyer string) ([]*storage.PurchaseRecord, error) {
	buyer = strings.ToLower(buyer)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PurchaseRecord
	for _, p := range s.data {
		if p.ChainID == chainID && p.Buyer == buyer {
			copied := *p
			result = append(result, &copied)
		}
	}
	sortPurchases(result)
	return result, nil
}

func normalize(p *storage.PurchaseRecord) *storage.PurchaseRecord {
	copied := *p
	copied.TxHash = strings.ToLower(copied.TxHash)
	copied.StoreAddress = strings.ToLower(copied.StoreAddress)
	copied.Buyer = strings.ToLower(copied.Buyer)
	return &copied
}

func sortPurchases(purchases []*storage.PurchaseRecord) {
	sort.Slice(purchases, func(i, j int) bool {
		if purchases[i].BlockNumber != purchases[j].BlockNumber {
			return purchases[i].BlockNumber < purchases[j].BlockNumber
		}
		return purchases[i].LogIndex < purchases[j].LogIndex
	})
}

var _ storage.PurchaseStore = (*PurchaseStore)(nil)
