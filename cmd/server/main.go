// Package main provides the bazaar gateway that runs all backend
// components together:
// - Indexer (continuous): factory and store logs into the directory
//   and purchase stores
// - HTTP API: store directory, catalogs and purchase history, reading
//   the chain first and falling back to the indexed copy
// - Observability: /metrics, /health and /status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/factory"
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

// Server holds all components of the gateway.
type Server struct {
	chain    registry.Chain
	backend  ethrpc.Backend
	endpoint string

	tokens    *token.Service
	stores    *store.Service
	factory   *factory.Service
	indexer   *indexer.Indexer
	metrics   *observability.Metrics
	persisted *allStores
	logger    *log.Logger

	mu       sync.Mutex
	started  time.Time
	lastSync *indexer.SyncResult
}

// allStores holds all storage implementations.
type allStores struct {
	directory   storage.DirectoryStore
	purchases   storage.PurchaseStore
	checkpoints storage.CheckpointStore

	// analytics is only available with ClickHouse.
	analytics *chstore.PurchaseEventStore
}

func main() {
	loadEnvFile()

	chainID := flag.Int64("chain-id", 31337, "Chain ID to serve")
	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("RPC_ENDPOINTS"), "Comma-separated RPC HTTP endpoints (default: registry)")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("WS_ENDPOINT"), "WebSocket RPC endpoint for push notifications (optional)")
	registryPath := flag.String("registry-config", os.Getenv("REGISTRY_CONFIG"), "YAML file overriding chain configuration")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables analytics)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	startBlock := flag.Uint64("start-block", 0, "First block to index when no checkpoint exists")
	syncInterval := flag.Duration("sync-interval", 5*time.Second, "Indexer poll interval")
	batchSize := flag.Uint64("batch-size", 2000, "Max block span per eth_getLogs call")
	httpAddr := flag.String("http-addr", ":8080", "HTTP listen address")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

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

	endpoints := chain.RPCURLs
	if *rpcEndpoints != "" {
		endpoints = splitList(*rpcEndpoints)
	}
	if len(endpoints) == 0 {
		logger.Fatal("No RPC endpoints. Use --rpc-endpoints or configure the registry")
	}

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	metrics := observability.NewMetrics("")

	backend, endpoint, err := ethrpc.Dial(ctx, endpoints, ethrpc.WithMetrics(metrics))
	if err != nil {
		logger.Fatalf("Dial RPC: %v", err)
	}
	logger.Printf("Connected to %s (chain %d)", endpoint, chain.ID)

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Create stores: %v", err)
	}
	defer cleanup()

	factoryAddr, err := reg.ContractAddress(chain.ID, registry.RetailFactory)
	if err != nil {
		logger.Fatalf("Factory address: %v", err)
	}

	tokens := token.NewService(backend, logger)
	storeSvc := store.NewService(backend, tokens, logger)
	factorySvc := factory.NewService(backend, factoryAddr, storeSvc, logger)

	server := &Server{
		chain:     chain,
		backend:   backend,
		endpoint:  endpoint,
		tokens:    tokens,
		stores:    storeSvc,
		factory:   factorySvc,
		metrics:   metrics,
		persisted: stores,
		logger:    logger,
		started:   time.Now(),
	}

	wsURL := *wsEndpoint
	if wsURL == "" {
		wsURL = chain.WSURL
	}
	var subscriber indexer.LogSubscriber
	if wsURL != "" {
		wsCfg := ethrpc.DefaultWSConfig()
		wsCfg.Logger = logger
		ws, err := ethrpc.NewWSClient(ctx, wsURL, &wsCfg)
		if err != nil {
			logger.Printf("WebSocket connect failed, falling back to polling: %v", err)
		} else {
			defer ws.Close()
			subscriber = ws
		}
	}

	server.indexer = indexer.New(indexer.Options{
		Backend:      backend,
		ChainID:      uint64(chain.ID),
		Factory:      factoryAddr,
		Stores:       storeSvc,
		Directory:    stores.directory,
		Purchases:    stores.purchases,
		Checkpoints:  stores.checkpoints,
		Subscriber:   subscriber,
		StartBlock:   *startBlock,
		BatchSize:    *batchSize,
		PollInterval: *syncInterval,
		OnSync:       server.recordSync,
		OnSyncError:  server.recordSyncError,
		Logger:       log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile),
	})

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx, *httpAddr)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			directory:   memory.NewDirectoryStore(),
			purchases:   memory.NewPurchaseStore(),
			checkpoints: memory.NewCheckpointStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		directory:   pgstore.NewDirectoryStore(pool),
		purchases:   pgstore.NewPurchaseStore(pool),
		checkpoints: pgstore.NewCheckpointStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse is optional: without it the analytics endpoints are
	// disabled but indexing and the directory API keep working. When
	// present, the indexer mirrors purchases into it.
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.analytics = chstore.NewPurchaseEventStore(chConn)
		stores.purchases = storage.NewTeePurchaseStore(stores.purchases, stores.analytics)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run starts the indexer and the HTTP server, blocking until the
// context is cancelled or a component fails.
func (s *Server) Run(ctx context.Context, httpAddr string) error {
	errCh := make(chan error, 2)

	go func() {
		if err := s.indexer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("indexer: %w", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Printf("Starting HTTP server on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("HTTP shutdown: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// recordSync feeds sync pass results into metrics and status.
func (s *Server) recordSync(result *indexer.SyncResult) {
	s.metrics.StoresDiscovered.Add(float64(result.StoresDiscovered))
	s.metrics.PurchasesIngested.Add(float64(result.PurchasesIngested))
	s.metrics.DuplicatesSkipped.Add(float64(result.DuplicatesSkipped))
	s.metrics.IndexerErrors.Add(float64(result.Errors))
	s.metrics.IndexerHeadBlock.Set(float64(result.ToBlock))
	s.metrics.IndexerSyncs.WithLabelValues("success").Inc()
	s.metrics.SyncDuration.Observe(result.Duration.Seconds())
	s.metrics.LastSuccessfulSync.SetToCurrentTime()

	s.mu.Lock()
	s.lastSync = result
	s.mu.Unlock()
}

// recordSyncError counts failed sync passes.
func (s *Server) recordSyncError(error) {
	s.metrics.IndexerSyncs.WithLabelValues("failure").Inc()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/stores", s.handleStores)
	mux.HandleFunc("GET /api/stores/{address}", s.handleStoreInfo)
	mux.HandleFunc("GET /api/stores/{address}/products", s.handleProducts)
	mux.HandleFunc("GET /api/stores/{address}/purchases", s.handleStorePurchases)
	mux.HandleFunc("GET /api/stores/{address}/revenue", s.handleRevenue)
	mux.HandleFunc("GET /api/stores/{address}/buyers", s.handleTopBuyers)
	mux.HandleFunc("GET /api/buyers/{address}/purchases", s.handleBuyerPurchases)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string `json:"status"`
	ChainID       int64  `json:"chain_id"`
	Endpoint      string `json:"endpoint"`
	Uptime        string `json:"uptime"`
	IndexedBlock  uint64 `json:"indexed_block"`
	LastSyncStats any    `json:"last_sync,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.lastSync
	started := s.started
	s.mu.Unlock()

	resp := StatusResponse{
		Status:   "running",
		ChainID:  s.chain.ID,
		Endpoint: s.endpoint,
		Uptime:   time.Since(started).String(),
	}
	if last != nil {
		resp.IndexedBlock = last.ToBlock
		resp.LastSyncStats = last
	}
	writeJSON(w, http.StatusOK, resp)
}

// storeEntry is one directory row in API responses.
type storeEntry struct {
	Address     string `json:"address"`
	Owner       string `json:"owner,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	Synthesized bool   `json:"synthesized,omitempty"`
	Source      string `json:"source"`
}

// handleStores serves the store directory: the chain is authoritative,
// the indexed copy answers when the chain read fails.
func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	entries, err := s.factory.Directory(r.Context())
	if err == nil {
		out := make([]storeEntry, 0, len(entries))
		for _, e := range entries {
			entry := storeEntry{
				Address:     e.Address.Hex(),
				Name:        e.Name,
				Synthesized: e.Synthesized,
				Source:      "chain",
			}
			if e.Info != nil {
				entry.Description = e.Info.Description
				entry.IsActive = e.Info.IsActive
			}
			out = append(out, entry)
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	s.logger.Printf("directory chain read failed, serving indexed copy: %v", err)
	records, dbErr := s.persisted.directory.ListByChain(r.Context(), uint64(s.chain.ID))
	if dbErr != nil {
		httpError(w, http.StatusBadGateway, fmt.Errorf("chain: %v; db: %v", err, dbErr))
		return
	}
	out := make([]storeEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, storeEntry{
			Address:     rec.Address,
			Owner:       rec.Owner,
			Name:        rec.Name,
			Description: rec.Description,
			IsActive:    rec.IsActive,
			Source:      "index",
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStoreInfo(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	info, err := s.stores.GetStoreInfo(r.Context(), addr)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"address":       addr.Hex(),
			"name":          info.Name,
			"description":   info.Description,
			"token_address": info.TokenAddress.Hex(),
			"token_balance": info.TokenBalance.String(),
			"is_active":     info.IsActive,
			"created_at":    info.CreatedAt.UTC(),
			"source":        "chain",
		})
		return
	}

	rec, dbErr := s.persisted.directory.GetByAddress(r.Context(), uint64(s.chain.ID), addr.Hex())
	if dbErr != nil {
		if errors.Is(dbErr, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, fmt.Errorf("store %s not found", addr.Hex()))
			return
		}
		httpError(w, http.StatusBadGateway, fmt.Errorf("chain: %v; db: %v", err, dbErr))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       rec.Address,
		"owner":         rec.Owner,
		"name":          rec.Name,
		"description":   rec.Description,
		"token_address": rec.TokenAddress,
		"is_active":     rec.IsActive,
		"created_at":    time.Unix(rec.CreatedAt, 0).UTC(),
		"source":        "index",
	})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	products, failed, err := s.stores.GetAllProducts(r.Context(), addr)
	if err != nil {
		httpError(w, http.StatusBadGateway, err)
		return
	}

	type productEntry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Price       string `json:"price"`
		Stock       string `json:"stock"`
		IsActive    bool   `json:"is_active"`
	}
	out := make([]productEntry, 0, len(products))
	for _, p := range products {
		out = append(out, productEntry{
			ID:          p.ID.String(),
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.String(),
			Stock:       p.Stock.String(),
			IsActive:    p.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": out,
		"failed":   failed,
	})
}

func (s *Server) handleStorePurchases(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	records, err := s.persisted.purchases.GetByStore(r.Context(), uint64(s.chain.ID), addr.Hex())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleBuyerPurchases(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	records, err := s.persisted.purchases.GetByBuyer(r.Context(), uint64(s.chain.ID), addr.Hex())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	if s.persisted.analytics == nil {
		httpError(w, http.StatusNotImplemented, errors.New("analytics require clickhouse"))
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	points, err := s.persisted.analytics.DailyRevenue(r.Context(), uint64(s.chain.ID), addr.Hex())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleTopBuyers(w http.ResponseWriter, r *http.Request) {
	if s.persisted.analytics == nil {
		httpError(w, http.StatusNotImplemented, errors.New("analytics require clickhouse"))
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			httpError(w, http.StatusBadRequest, errors.New("limit must be 1-1000"))
			return
		}
		limit = n
	}
	totals, err := s.persisted.analytics.TopBuyers(r.Context(), uint64(s.chain.ID), addr.Hex(), limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		httpError(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
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

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
