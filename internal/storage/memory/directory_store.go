// Package memory holds in-memory store implementations, used in
// tests and when the server runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"block-bazaar/internal/storage"
)

// DirectoryStore is an in-memory implementation of
// storage.DirectoryStore.
type DirectoryStore struct {
	mu   sync.RWMutex
	data map[string]*storage.StoreRecord // keyed by chain|address
}

// NewDirectoryStore creates an empty in-memory directory store.
func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{
		data: make(map[string]*storage.StoreRecord),
	}
}

func directoryKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d|%s", chainID, strings.ToLower(address))
}

// Upsert inserts or replaces the row for (chain_id, address).
func (s *DirectoryStore) Upsert(_ context.Context, r *storage.StoreRecord) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *r
	copied.Address = strings.ToLower(copied.Address)
	copied.Owner = strings.ToLower(copied.Owner)
	if copied.UpdatedAt.IsZero() {
		copied.UpdatedAt = time.Now().UTC()
	}
	s.data[directoryKey(r.ChainID, r.Address)] = &copied
	return nil
}

// GetByAddress retrieves one store. Returns ErrNotFound if absent.
func (s *DirectoryStore) GetByAddress(_ context.Context, chainID uint64, address string) (*storage.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[directoryKey(chainID, address)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// ListByChain retrieves every store on a chain, oldest first.
func (s *DirectoryStore) ListByChain(_ context.Context, chainID uint64) ([]*storage.StoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.StoreRecord
	for _, r := range s.data {
		if r.ChainID == chainID {
			copied := *r
			result = append(result, &copied)
		}
	}
	sortRecords(result)
	return result, nil
}

// ListByOwner retrieves the stores of one owner, oldest first.
func (s *DirectoryStore) ListByOwner(_ context.Context, chainID uint64, owner string) ([]*storage.StoreRecord, error) {
	owner = strings.ToLower(owner)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.StoreRecord
	for _, r := range s.data {
		if r.ChainID == chainID && r.Owner == owner {
			copied := *r
			result = append(result, &copied)
		}
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(records []*storage.StoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].Address < records[j].Address
	})
}

var _ storage.DirectoryStore = (*DirectoryStore)(nil)
