// Package main runs the chain indexer standalone: factory deployments
// into the store directory, purchase events into the purchase store,
// checkpointed per chain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/indexer"
	"block-bazaar/internal/observability"
	"block-bazaar/internal/registry"
	"block-bazaar/internal/storage"
	chstore "block-bazaar/internal/storage/clickhouse"
	"block-bazaar/internal/storage/memory"
	"block-bazaar/internal/storage/migrations"
	pgstore "block-bazaar/internal/storage/postgres"
	"block-bazaar/internal/store"
	"block-bazaar/internal/token"
)

func main() {
	mode := flag.String("mode", "live", "Indexing mode: live (continuous) or once (single pass)")
	chainID := flag.Int64("chain-id", 31337, "Chain ID to index")
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("RPC_ENDPOINTS"), "Comma-separated RPC HTTP endpoints (default: registry)")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("WS_ENDPOINT"), "WebSocket RPC endpoint for push notifications (optional)")
	registryPath := flag.String("registry-config", os.Getenv("REGISTRY_CONFIG"), "YAML file overriding chain configuration")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, mirrors purchases for analytics)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	startBlock := flag.Uint64("start-block", 0, "First block to scan when no checkpoint exists")
	batchSize := flag.Uint64("batch-size", 2000, "Max block span per eth_getLogs call")
	syncInterval := flag.Duration("sync-interval", 5*time.Second, "Pause between head checks in live mode")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile)

	reg := registry.Default()
	if *registryPath != "" {
		var err error
		reg, err = registry.LoadFile(*registryPath)
		if err != nil {
			logger.Fatalf("Load registry config: %v", err)
		}
	}
	chain, err := reg.Chain(*chainID)
	if err != nil {
		logger.Fatalf("Chain %d: %v", *chainID, err)
	}
	factoryAddr, err := reg.ContractAddress(chain.ID, registry.RetailFactory)
	if err != nil {
		logger.Fatalf("Factory address: %v", err)
	}

	endpoints := chain.RPCURLs
	if *rpcEndpoints != "" {
		endpoints = splitList(*rpcEndpoints)
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	metrics := observability.NewMetrics("")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	backend, endpoint, err := ethrpc.Dial(ctx, endpoints, ethrpc.WithMetrics(metrics))
	if err != nil {
		logger.Fatalf("Dial RPC: %v", err)
	}
	logger.Printf("Connected to %s (chain %d)", endpoint, chain.ID)

	directory, purchases, checkpoints, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Create stores: %v", err)
	}
	defer cleanup()

	wsURL := *wsEndpoint
	if wsURL == "" {
		wsURL = chain.WSURL
	}
	var subscriber indexer.LogSubscriber
	if wsURL != "" && *mode == "live" {
		wsCfg := ethrpc.DefaultWSConfig()
		wsCfg.Logger = logger
		ws, err := ethrpc.NewWSClient(ctx, wsURL, &wsCfg)
		if err != nil {
			logger.Printf("WebSocket connect failed, falling back to polling: %v", err)
		} else {
			defer ws.Close()
			subscriber = ws
			logger.Printf("Subscribed for push notifications on %s", wsURL)
		}
	}

	tokens := token.NewService(backend, logger)
	stores := store.NewService(backend, tokens, logger)

	ix := indexer.New(indexer.Options{
		Backend:      backend,
		ChainID:      uint64(chain.ID),
		Factory:      factoryAddr,
		Stores:       stores,
		Directory:    directory,
		Purchases:    purchases,
		Checkpoints:  checkpoints,
		Subscriber:   subscriber,
		StartBlock:   *startBlock,
		BatchSize:    *batchSize,
		PollInterval: *syncInterval,
		OnSync: func(result *indexer.SyncResult) {
			metrics.StoresDiscovered.Add(float64(result.StoresDiscovered))
			metrics.PurchasesIngested.Add(float64(result.PurchasesIngested))
			metrics.DuplicatesSkipped.Add(float64(result.DuplicatesSkipped))
			metrics.IndexerErrors.Add(float64(result.Errors))
			metrics.IndexerHeadBlock.Set(float64(result.ToBlock))
			metrics.IndexerSyncs.WithLabelValues("success").Inc()
			metrics.SyncDuration.Observe(result.Duration.Seconds())
			metrics.LastSuccessfulSync.SetToCurrentTime()
		},
		OnSyncError: func(error) {
			metrics.IndexerSyncs.WithLabelValues("failure").Inc()
		},
		Logger: logger,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	switch *mode {
	case "live":
		err = ix.Run(ctx)
	case "once":
		var result *indexer.SyncResult
		result, err = ix.SyncOnce(ctx)
		if err == nil {
			logger.Printf("Sync complete: blocks %d-%d, %d stores, %d purchases, %d dupes, %d errors in %v",
				result.FromBlock, result.ToBlock, result.StoresDiscovered,
				result.PurchasesIngested, result.DuplicatesSkipped, result.Errors, result.Duration)
		}
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores builds the directory, purchase and checkpoint stores.
// With ClickHouse configured, purchases are written to both stores so
// the analytics tables stay in step with the relational copy.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.DirectoryStore, storage.PurchaseStore, storage.CheckpointStore, func(), error) {
	if useMemory {
		return memory.NewDirectoryStore(), memory.NewPurchaseStore(), memory.NewCheckpointStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	var purchases storage.PurchaseStore = pgstore.NewPurchaseStore(pool)
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		purchases = storage.NewTeePurchaseStore(purchases, chstore.NewPurchaseEventStore(chConn))
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return pgstore.NewDirectoryStore(pool), purchases, pgstore.NewCheckpointStore(pool), cleanup, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
