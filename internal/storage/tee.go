package storage

import (
	"context"
	"errors"
	"fmt"
)

// TeePurchaseStore writes purchases to a primary store and mirrors
// them into a secondary one, typically relational then analytics.
// Reads come from the primary; duplicate errors from the mirror are
// absorbed, the primary copy is authoritative.
type TeePurchaseStore struct {
	primary   PurchaseStore
	secondary PurchaseStore
}

// NewTeePurchaseStore builds a mirroring purchase store.
func NewTeePurchaseStore(primary, secondary PurchaseStore) *TeePurchaseStore {
	return &TeePurchaseStore{primary: primary, secondary: secondary}
}

var _ PurchaseStore = (*TeePurchaseStore)(nil)

func (t *TeePurchaseStore) Insert(ctx context.Context, p *PurchaseRecord) error {
	if err := t.primary.Insert(ctx, p); err != nil {
		return err
	}
	if err := t.secondary.Insert(ctx, p); err != nil && !errors.Is(err, ErrDuplicateKey) {
		return fmt.Errorf("mirror insert: %w", err)
	}
	return nil
}

func (t *TeePurchaseStore) InsertBulk(ctx context.Context, purchases []*PurchaseRecord) error {
	if err := t.primary.InsertBulk(ctx, purchases); err != nil {
		return err
	}
	if err := t.secondary.InsertBulk(ctx, purchases); err != nil && !errors.Is(err, ErrDuplicateKey) {
		return fmt.Errorf("mirror bulk insert: %w", err)
	}
	return nil
}

func (t *TeePurchaseStore) GetByStore(ctx context.Context, chainID uint64, storeAddress string) ([]*PurchaseRecord, error) {
	return t.primary.GetByStore(ctx, chainID, storeAddress)
}

func (t *TeePurchaseStore) GetByBuyer(ctx context.Context, chainID uint64, buyer string) ([]*PurchaseRecord, error) {
	return t.primary.GetByBuyer(ctx, chainID, buyer)
}
