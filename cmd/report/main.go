// Package main generates the sales report over the indexed purchase
// data: SALES_REPORT.md plus a flat PURCHASES.csv export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"block-bazaar/internal/reporting"
	"block-bazaar/internal/storage"
	"block-bazaar/internal/storage/memory"
	"block-bazaar/internal/storage/migrations"
	pgstore "block-bazaar/internal/storage/postgres"
)

func main() {
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	chainID := flag.Uint64("chain-id", 31337, "Chain ID to report on")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory demo data instead of a database")
	flag.Parse()

	ctx := context.Background()

	if !*useFixtures && *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	var (
		directory storage.DirectoryStore
		purchases storage.PurchaseStore
	)
	if *useFixtures {
		directory, purchases = createFixtureStores(ctx, *chainID)
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
			os.Exit(1)
		}
		directory = pgstore.NewDirectoryStore(pool)
		purchases = pgstore.NewPurchaseStore(pool)
	}

	gen := reporting.NewGenerator(directory, purchases, *chainID)
	if *useFixtures {
		// Fixed clock keeps the demo output deterministic.
		gen = gen.WithClock(func() time.Time {
			return time.Date(2023, 11, 20, 12, 0, 0, 0, time.UTC)
		})
	}

	report, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
	rows, err := gen.Purchases(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error collecting purchases: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}
	mdPath := filepath.Join(*outputDir, "SALES_REPORT.md")
	csvPath := filepath.Join(*outputDir, "PURCHASES.csv")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(rows)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Println("Sales report generated successfully:")
	fmt.Printf("  - %s\n", mdPath)
	fmt.Printf("  - %s\n", csvPath)
}

// createFixtureStores fills memory stores with a small demo data set.
func createFixtureStores(ctx context.Context, chainID uint64) (storage.DirectoryStore, storage.PurchaseStore) {
	directory := memory.NewDirectoryStore()
	purchases := memory.NewPurchaseStore()

	stores := []*storage.StoreRecord{
		{ChainID: chainID, Address: "0x1000000000000000000000000000000000000001", Owner: "0x2000000000000000000000000000000000000001", Name: "Demo Electronics", Description: "Gadgets paid in stablecoin", IsActive: true, CreatedAt: 1_700_000_000},
		{ChainID: chainID, Address: "0x1000000000000000000000000000000000000002", Owner: "0x2000000000000000000000000000000000000002", Name: "Demo Books", Description: "On-chain bookshop", IsActive: true, CreatedAt: 1_700_000_000},
		{ChainID: chainID, Address: "0x1000000000000000000000000000000000000003", Owner: "0x2000000000000000000000000000000000000003", IsActive: false, CreatedAt: 1_700_100_000},
	}
	events := []*storage.PurchaseRecord{
		{ChainID: chainID, StoreAddress: stores[0].Address, TxHash: "0xf001", LogIndex: 0, BlockNumber: 100, ProductID: 1, Buyer: "0x3000000000000000000000000000000000000001", Quantity: "1", TotalPrice: "250000000000000000000", Timestamp: 1_700_000_100},
		{ChainID: chainID, StoreAddress: stores[0].Address, TxHash: "0xf002", LogIndex: 0, BlockNumber: 140, ProductID: 2, Buyer: "0x3000000000000000000000000000000000000002", Quantity: "2", TotalPrice: "90000000000000000000", Timestamp: 1_700_010_000},
		{ChainID: chainID, StoreAddress: stores[0].Address, TxHash: "0xf003", LogIndex: 1, BlockNumber: 900, ProductID: 1, Buyer: "0x3000000000000000000000000000000000000001", Quantity: "1", TotalPrice: "250000000000000000000", Timestamp: 1_700_090_000},
		{ChainID: chainID, StoreAddress: stores[1].Address, TxHash: "0xf004", LogIndex: 0, BlockNumber: 200, ProductID: 5, Buyer: "0x3000000000000000000000000000000000000003", Quantity: "3", TotalPrice: "45000000000000000000", Timestamp: 1_700_020_000},
	}

	for _, rec := range stores {
		if err := directory.Upsert(ctx, rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
	}
	for _, ev := range events {
		if err := purchases.Insert(ctx, ev); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
	}
	return directory, purchases
}
