// Package reporting builds sales reports over the indexed store
// directory and purchase data.
package reporting

import "time"

// Report is the sales report over the indexed purchase data of one
// chain.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	ChainID     uint64

	// Data Summary
	Summary Summary

	// Per-store sections, sorted by revenue, biggest first
	Stores []StoreSection
}

// Summary describes the data set the report was built from.
type Summary struct {
	TotalStores    int
	ActiveStores   int
	TotalPurchases int
	UniqueBuyers   int
	// FirstPurchase and LastPurchase are zero when no purchases exist.
	FirstPurchase time.Time
	LastPurchase  time.Time
}

// StoreSection is the report section of one store.
type StoreSection struct {
	Address   string
	Name      string
	Owner     string
	IsActive  bool
	Purchases int
	Buyers    int
	// Revenue is approximate: uint256 amounts summed as float64.
	Revenue float64

	Daily     []DailyRow
	TopBuyers []BuyerRow
}

// DailyRow is one day of a store's sales.
type DailyRow struct {
	Day       time.Time
	Revenue   float64
	Purchases int
}

// BuyerRow is one buyer's aggregate spend at a store.
type BuyerRow struct {
	Buyer     string
	Spent     float64
	Purchases int
}

// PurchaseRow is one flattened purchase for the CSV export.
type PurchaseRow struct {
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
