package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"block-bazaar/internal/storage"
	"block-bazaar/internal/storage/memory"
)

const testChainID = 31337

func seedStores(t *testing.T, directory *memory.DirectoryStore) {
	t.Helper()
	ctx := context.Background()
	records := []*storage.StoreRecord{
		{ChainID: testChainID, Address: "0xaa01", Owner: "0xbb01", Name: "Alpha Goods", IsActive: true},
		{ChainID: testChainID, Address: "0xaa02", Owner: "0xbb02", Name: "Beta Mart", IsActive: true},
		{ChainID: testChainID, Address: "0xaa03", Owner: "0xbb03", Name: "", IsActive: false},
	}
	for _, r := range records {
		if err := directory.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
}

func seedPurchases(t *testing.T, purchases *memory.PurchaseStore) {
	t.Helper()
	ctx := context.Background()
	base := int64(1_700_000_000) // 2023-11-14 UTC
	records := []*storage.PurchaseRecord{
		{ChainID: testChainID, StoreAddress: "0xaa01", TxHash: "0x01", LogIndex: 0, BlockNumber: 10, ProductID: 1, Buyer: "0xcc01", Quantity: "2", TotalPrice: "200", Timestamp: base},
		{ChainID: testChainID, StoreAddress: "0xaa01", TxHash: "0x02", LogIndex: 0, BlockNumber: 11, ProductID: 1, Buyer: "0xcc02", Quantity: "1", TotalPrice: "100", Timestamp: base + 60},
		{ChainID: testChainID, StoreAddress: "0xaa01", TxHash: "0x03", LogIndex: 1, BlockNumber: 20, ProductID: 2, Buyer: "0xcc01", Quantity: "1", TotalPrice: "500", Timestamp: base + 86_400},
		{ChainID: testChainID, StoreAddress: "0xaa02", TxHash: "0x04", LogIndex: 0, BlockNumber: 12, ProductID: 7, Buyer: "0xcc03", Quantity: "3", TotalPrice: "150", Timestamp: base + 120},
	}
	for _, r := range records {
		if err := purchases.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	directory := memory.NewDirectoryStore()
	purchases := memory.NewPurchaseStore()
	seedStores(t, directory)
	seedPurchases(t, purchases)
	return NewGenerator(directory, purchases, testChainID).
		WithClock(func() time.Time { return time.Date(2023, 11, 20, 12, 0, 0, 0, time.UTC) })
}

func TestGenerateSummary(t *testing.T) {
	report, err := testGenerator(t).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if report.ChainID != testChainID {
		t.Errorf("ChainID = %d, want %d", report.ChainID, testChainID)
	}
	if report.Summary.TotalStores != 3 {
		t.Errorf("TotalStores = %d, want 3", report.Summary.TotalStores)
	}
	if report.Summary.ActiveStores != 2 {
		t.Errorf("ActiveStores = %d, want 2", report.Summary.ActiveStores)
	}
	if report.Summary.TotalPurchases != 4 {
		t.Errorf("TotalPurchases = %d, want 4", report.Summary.TotalPurchases)
	}
	if report.Summary.UniqueBuyers != 3 {
		t.Errorf("UniqueBuyers = %d, want 3", report.Summary.UniqueBuyers)
	}
	if got := report.Summary.FirstPurchase.Unix(); got != 1_700_000_000 {
		t.Errorf("FirstPurchase = %d, want 1700000000", got)
	}
	if got := report.Summary.LastPurchase.Unix(); got != 1_700_086_400 {
		t.Errorf("LastPurchase = %d, want 1700086400", got)
	}
}

func TestGenerateSortsStoresByRevenue(t *testing.T) {
	report, err := testGenerator(t).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(report.Stores) != 3 {
		t.Fatalf("got %d store sections, want 3", len(report.Stores))
	}
	if report.Stores[0].Address != "0xaa01" {
		t.Errorf("top store = %s, want 0xaa01", report.Stores[0].Address)
	}
	if report.Stores[0].Revenue != 800 {
		t.Errorf("top store revenue = %.0f, want 800", report.Stores[0].Revenue)
	}
	if report.Stores[1].Address != "0xaa02" {
		t.Errorf("second store = %s, want 0xaa02", report.Stores[1].Address)
	}
	if report.Stores[2].Purchases != 0 {
		t.Errorf("empty store purchases = %d, want 0", report.Stores[2].Purchases)
	}
}

func TestGenerateStoreSection(t *testing.T) {
	report, err := testGenerator(t).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	s := report.Stores[0]
	if s.Purchases != 3 {
		t.Errorf("Purchases = %d, want 3", s.Purchases)
	}
	if s.Buyers != 2 {
		t.Errorf("Buyers = %d, want 2", s.Buyers)
	}

	if len(s.Daily) != 2 {
		t.Fatalf("got %d daily rows, want 2", len(s.Daily))
	}
	if s.Daily[0].Purchases != 2 || s.Daily[0].Revenue != 300 {
		t.Errorf("day one = %d purchases / %.0f revenue, want 2 / 300",
			s.Daily[0].Purchases, s.Daily[0].Revenue)
	}
	if s.Daily[1].Purchases != 1 || s.Daily[1].Revenue != 500 {
		t.Errorf("day two = %d purchases / %.0f revenue, want 1 / 500",
			s.Daily[1].Purchases, s.Daily[1].Revenue)
	}
	if !s.Daily[0].Day.Before(s.Daily[1].Day) {
		t.Error("daily rows not in chronological order")
	}

	if len(s.TopBuyers) != 2 {
		t.Fatalf("got %d top buyers, want 2", len(s.TopBuyers))
	}
	if s.TopBuyers[0].Buyer != "0xcc01" || s.TopBuyers[0].Spent != 700 {
		t.Errorf("top buyer = %s / %.0f, want 0xcc01 / 700",
			s.TopBuyers[0].Buyer, s.TopBuyers[0].Spent)
	}
}

func TestPurchasesFlattensAllStores(t *testing.T) {
	rows, err := testGenerator(t).Purchases(context.Background())
	if err != nil {
		t.Fatalf("Purchases: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	csv := RenderCSV(rows)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 5 {
		t.Fatalf("csv has %d lines, want 5", len(lines))
	}
	if !strings.HasPrefix(lines[0], "store_address,tx_hash,") {
		t.Errorf("unexpected csv header: %s", lines[0])
	}
	if !strings.Contains(csv, "0xaa01,0x01,0,10,1,0xcc01,2,200,1700000000") {
		t.Errorf("csv missing first purchase row:\n%s", csv)
	}
}

func TestRenderMarkdown(t *testing.T) {
	report, err := testGenerator(t).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Sales Report",
		"Chain: 31337",
		"| Stores | 3 |",
		"| Unique Buyers | 3 |",
		"### Alpha Goods",
		"(uninitialized)",
		"| 0xcc01 | 2 | 700 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	// Stores without purchases get no detail section.
	if strings.Contains(md, "### 0xaa03") {
		t.Error("markdown has a section for the empty store")
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	gen := NewGenerator(memory.NewDirectoryStore(), memory.NewPurchaseStore(), testChainID)
	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "No stores indexed.") {
		t.Errorf("markdown missing empty notice:\n%s", md)
	}
}
