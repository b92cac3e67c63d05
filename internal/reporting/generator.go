package reporting

import (
	"context"
	"sort"
	"strconv"
	"time"

	"block-bazaar/internal/storage"
)

// topBuyerLimit caps the buyers listed per store section.
const topBuyerLimit = 5

// Generator produces sales reports from the indexed stores. All
// aggregation happens here so any PurchaseStore implementation works.
type Generator struct {
	directory storage.DirectoryStore
	purchases storage.PurchaseStore
	chainID   uint64
	now       func() time.Time
}

// NewGenerator creates a report generator for one chain.
func NewGenerator(directory storage.DirectoryStore, purchases storage.PurchaseStore, chainID uint64) *Generator {
	return &Generator{
		directory: directory,
		purchases: purchases,
		chainID:   chainID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	records, err := g.directory.ListByChain(ctx, g.chainID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		ChainID:     g.chainID,
	}
	report.Summary.TotalStores = len(records)

	allBuyers := make(map[string]struct{})

	for _, rec := range records {
		if rec.IsActive {
			report.Summary.ActiveStores++
		}

		purchases, err := g.purchases.GetByStore(ctx, g.chainID, rec.Address)
		if err != nil {
			return nil, err
		}

		section := buildStoreSection(rec, purchases)
		report.Stores = append(report.Stores, section)

		report.Summary.TotalPurchases += len(purchases)
		for _, p := range purchases {
			allBuyers[p.Buyer] = struct{}{}
			ts := time.Unix(p.Timestamp, 0).UTC()
			if report.Summary.FirstPurchase.IsZero() || ts.Before(report.Summary.FirstPurchase) {
				report.Summary.FirstPurchase = ts
			}
			if ts.After(report.Summary.LastPurchase) {
				report.Summary.LastPurchase = ts
			}
		}
	}
	report.Summary.UniqueBuyers = len(allBuyers)

	sort.SliceStable(report.Stores, func(i, j int) bool {
		return report.Stores[i].Revenue > report.Stores[j].Revenue
	})

	return report, nil
}

// Purchases flattens all indexed purchases for the CSV export,
// ordered by store then block then log index.
func (g *Generator) Purchases(ctx context.Context) ([]PurchaseRow, error) {
	records, err := g.directory.ListByChain(ctx, g.chainID)
	if err != nil {
		return nil, err
	}

	var rows []PurchaseRow
	for _, rec := range records {
		purchases, err := g.purchases.GetByStore(ctx, g.chainID, rec.Address)
		if err != nil {
			return nil, err
		}
		for _, p := range purchases {
			rows = append(rows, PurchaseRow{
				StoreAddress: p.StoreAddress,
				TxHash:       p.TxHash,
				LogIndex:     p.LogIndex,
				BlockNumber:  p.BlockNumber,
				ProductID:    p.ProductID,
				Buyer:        p.Buyer,
				Quantity:     p.Quantity,
				TotalPrice:   p.TotalPrice,
				Timestamp:    p.Timestamp,
			})
		}
	}
	return rows, nil
}

func buildStoreSection(rec *storage.StoreRecord, purchases []*storage.PurchaseRecord) StoreSection {
	section := StoreSection{
		Address:   rec.Address,
		Name:      rec.Name,
		Owner:     rec.Owner,
		IsActive:  rec.IsActive,
		Purchases: len(purchases),
	}

	type dayKey struct{ y, m, d int }
	days := make(map[dayKey]*DailyRow)
	buyers := make(map[string]*BuyerRow)

	for _, p := range purchases {
		price, _ := strconv.ParseFloat(p.TotalPrice, 64)
		section.Revenue += price

		ts := time.Unix(p.Timestamp, 0).UTC()
		k := dayKey{ts.Year(), int(ts.Month()), ts.Day()}
		row, ok := days[k]
		if !ok {
			row = &DailyRow{Day: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)}
			days[k] = row
		}
		row.Revenue += price
		row.Purchases++

		b, ok := buyers[p.Buyer]
		if !ok {
			b = &BuyerRow{Buyer: p.Buyer}
			buyers[p.Buyer] = b
		}
		b.Spent += price
		b.Purchases++
	}
	section.Buyers = len(buyers)

	for _, row := range days {
		section.Daily = append(section.Daily, *row)
	}
	sort.Slice(section.Daily, func(i, j int) bool {
		return section.Daily[i].Day.Before(section.Daily[j].Day)
	})

	for _, b := range buyers {
		section.TopBuyers = append(section.TopBuyers, *b)
	}
	sort.SliceStable(section.TopBuyers, func(i, j int) bool {
		if section.TopBuyers[i].Spent != section.TopBuyers[j].Spent {
			return section.TopBuyers[i].Spent > section.TopBuyers[j].Spent
		}
		return section.TopBuyers[i].Buyer < section.TopBuyers[j].Buyer
	})
	if len(section.TopBuyers) > topBuyerLimit {
		section.TopBuyers = section.TopBuyers[:topBuyerLimit]
	}

	return section
}
