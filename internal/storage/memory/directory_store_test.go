package memory

import (
	"context"
	"errors"
	"testing"

	"block-bazaar/internal/storage"
)

func sampleStore(addr, owner string, createdAt int64) *storage.StoreRecord {
	return &storage.StoreRecord{
		ChainID:      31337,
		Address:      addr,
		Owner:        owner,
		Name:         "Camera Shop",
		Description:  "Lenses and film",
		TokenAddress: "0x00000000000000000000000000000000000000ee",
		IsActive:     true,
		CreatedAt:    createdAt,
	}
}

func TestDirectoryStore_UpsertAndGet(t *testing.T) {
	s := NewDirectoryStore()
	ctx := context.Background()

	rec := sampleStore("0xAAaA000000000000000000000000000000000001", "0xBBbB000000000000000000000000000000000001", 100)
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Lookup is case-insensitive on the address.
	got, err := s.GetByAddress(ctx, 31337, "0xaaaa000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if got.Name != "Camera Shop" || !got.IsActive {
		t.Errorf("got = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set on upsert")
	}
}

func TestDirectoryStore_UpsertReplaces(t *testing.T) {
	s := NewDirectoryStore()
	ctx := context.Background()

	rec := sampleStore("0xaa01", "0xbb01", 100)
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec.Name = "Renamed Shop"
	rec.IsActive = false
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := s.GetByAddress(ctx, 31337, "0xaa01")
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if got.Name != "Renamed Shop" || got.IsActive {
		t.Errorf("got = %+v, want replaced row", got)
	}

	list, err := s.ListByChain(ctx, 31337)
	if err != nil {
		t.Fatalf("ListByChain() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len = %d, want 1 (upsert must not duplicate)", len(list))
	}
}

func TestDirectoryStore_GetMissing(t *testing.T) {
	s := NewDirectoryStore()
	_, err := s.GetByAddress(context.Background(), 31337, "0xdead")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDirectoryStore_InvalidInput(t *testing.T) {
	s := NewDirectoryStore()
	if err := s.Upsert(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Upsert(nil) = %v, want ErrInvalidInput", err)
	}
	if err := s.Upsert(context.Background(), &storage.StoreRecord{ChainID: 1}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Upsert(no address) = %v, want ErrInvalidInput", err)
	}
}

func TestDirectoryStore_ListByChainOrdersByCreation(t *testing.T) {
	s := NewDirectoryStore()
	ctx := context.Background()

	for _, rec := range []*storage.StoreRecord{
		sampleStore("0xaa03", "0xbb01", 300),
		sampleStore("0xaa01", "0xbb01", 100),
		sampleStore("0xaa02", "0xbb02", 200),
	} {
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	// Different chain must not appear.
	other := sampleStore("0xaa09", "0xbb01", 50)
	other.ChainID = 1
	if err := s.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	list, err := s.ListByChain(ctx, 31337)
	if err != nil {
		t.Fatalf("ListByChain() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"0xaa01", "0xaa02", "0xaa03"} {
		if list[i].Address != want {
			t.Errorf("list[%d].Address = %s, want %s", i, list[i].Address, want)
		}
	}
}

func TestDirectoryStore_ListByOwner(t *testing.T) {
	s := NewDirectoryStore()
	ctx := context.Background()

	for _, rec := range []*storage.StoreRecord{
		sampleStore("0xaa01", "0xBB01", 100),
		sampleStore("0xaa02", "0xbb02", 200),
		sampleStore("0xaa03", "0xbb01", 300),
	} {
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	list, err := s.ListByOwner(ctx, 31337, "0xbb01")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Address != "0xaa01" || list[1].Address != "0xaa03" {
		t.Errorf("list = %v, %v", list[0].Address, list[1].Address)
	}
}
