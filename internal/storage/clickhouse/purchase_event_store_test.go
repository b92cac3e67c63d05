package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"block-bazaar/internal/storage"
	chstore "block-bazaar/internal/storage/clickhouse"
)

const dayInSeconds = 86_400

func event(txHash string, logIndex uint32, block uint64, buyer, price string, ts int64) *storage.PurchaseRecord {
	return &storage.PurchaseRecord{
		ChainID:      31337,
		StoreAddress: "0xaa01",
		TxHash:       txHash,
		LogIndex:     logIndex,
		BlockNumber:  block,
		ProductID:    1,
		Buyer:        buyer,
		Quantity:     "1",
		TotalPrice:   price,
		Timestamp:    ts,
	}
}

func TestPurchaseEventStore_Clickhouse(t *testing.T) {
	conn := setupTestDB(t)
	store := chstore.NewPurchaseEventStore(conn)
	ctx := context.Background()

	t.Run("insert and duplicate", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, event("0x01", 0, 10, "0xcc01", "100", 1_700_000_000)))
		assert.ErrorIs(t, store.Insert(ctx, event("0X01", 0, 10, "0xcc01", "100", 1_700_000_000)),
			storage.ErrDuplicateKey)
	})

	t.Run("intra-batch duplicate rejected before send", func(t *testing.T) {
		batch := []*storage.PurchaseRecord{
			event("0x02", 0, 11, "0xcc01", "100", 1_700_000_000),
			event("0x02", 0, 11, "0xcc01", "100", 1_700_000_000),
		}
		assert.ErrorIs(t, store.InsertBulk(ctx, batch), storage.ErrDuplicateKey)

		got, err := store.GetByStore(ctx, 31337, "0xaa01")
		require.NoError(t, err)
		assert.Len(t, got, 1, "failed batch must not persist")
	})

	t.Run("get by store ordered", func(t *testing.T) {
		require.NoError(t, store.InsertBulk(ctx, []*storage.PurchaseRecord{
			event("0x03", 1, 12, "0xcc02", "250", 1_700_000_100),
			event("0x03", 0, 12, "0xcc02", "50", 1_700_000_100),
		}))

		got, err := store.GetByStore(ctx, 31337, "0xAA01")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, uint64(10), got[0].BlockNumber)
		assert.Equal(t, uint32(0), got[1].LogIndex)
		assert.Equal(t, uint32(1), got[2].LogIndex)
		assert.Equal(t, "250", got[2].TotalPrice)
		assert.Equal(t, int64(1_700_000_100), got[2].Timestamp)
	})

	t.Run("get by buyer", func(t *testing.T) {
		got, err := store.GetByBuyer(ctx, 31337, "0xCC02")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "0xcc02", got[0].Buyer)
	})

	t.Run("daily revenue", func(t *testing.T) {
		// Next day relative to the three events above.
		require.NoError(t, store.Insert(ctx,
			event("0x04", 0, 20, "0xcc01", "1000", 1_700_000_000+dayInSeconds)))

		points, err := store.DailyRevenue(ctx, 31337, "0xaa01")
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.InDelta(t, 400.0, points[0].Revenue, 0.001)
		assert.Equal(t, uint64(3), points[0].Purchases)
		assert.InDelta(t, 1000.0, points[1].Revenue, 0.001)
		assert.True(t, points[0].Day.Before(points[1].Day))
	})

	t.Run("top buyers", func(t *testing.T) {
		totals, err := store.TopBuyers(ctx, 31337, "0xaa01", 10)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.Equal(t, "0xcc01", totals[0].Buyer)
		assert.InDelta(t, 1100.0, totals[0].Spent, 0.001)
		assert.Equal(t, uint64(2), totals[0].Purchases)

		one, err := store.TopBuyers(ctx, 31337, "0xaa01", 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.ErrorIs(t, store.Insert(ctx, &storage.PurchaseRecord{}), storage.ErrInvalidInput)
	})
}
