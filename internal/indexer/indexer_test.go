package indexer

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/ethrpc/ethtest"
	"block-bazaar/internal/storage"
	"block-bazaar/internal/storage/memory"
	"block-bazaar/internal/store"
	"block-bazaar/internal/token"
)

var (
	factoryAddr = common.HexToAddress("0xFac0000000000000000000000000000000000001")
	ownerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	storeAddr   = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	buyerAddr   = common.HexToAddress("0x00000000000000000000000000000000000000C1")
)

type harness struct {
	backend     *ethtest.Backend
	directory   *memory.DirectoryStore
	purchases   *memory.PurchaseStore
	checkpoints *memory.CheckpointStore
	indexer     *Indexer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := ethtest.NewBackend(31337)
	logger := log.New(os.Stderr, "", 0)
	tokens := token.NewService(backend, logger)
	stores := store.NewService(backend, tokens, logger)

	h := &harness{
		backend:     backend,
		directory:   memory.NewDirectoryStore(),
		purchases:   memory.NewPurchaseStore(),
		checkpoints: memory.NewCheckpointStore(),
	}
	h.indexer = New(Options{
		Backend:     backend,
		ChainID:     31337,
		Factory:     factoryAddr,
		Stores:      stores,
		Directory:   h.directory,
		Purchases:   h.purchases,
		Checkpoints: h.checkpoints,
		StartBlock:  1,
		Logger:      logger,
	})
	return h
}

// serveStoreInfo answers getStoreInfo at the store address.
func (h *harness) serveStoreInfo(name string, active bool) {
	type infoTuple struct {
		Name         string
		Description  string
		TokenAddress common.Address
		TokenBalance *big.Int
		IsActive     bool
		CreatedAt    *big.Int
	}
	contract := ethtest.NewContract(contracts.Store).
		Returns("getStoreInfo", infoTuple{
			Name:         name,
			Description:  "indexed shop",
			TokenAddress: common.HexToAddress("0xee"),
			TokenBalance: big.NewInt(1000),
			IsActive:     active,
			CreatedAt:    big.NewInt(1_700_000_000),
		})
	h.backend.Handle(storeAddr, contract.Handler())
}

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func deployedLog(block uint64) types.Log {
	return types.Log{
		Address:     factoryAddr,
		Topics:      []common.Hash{contracts.Factory.Events[contracts.EventStoreDeployed].ID, addrTopic(ownerAddr), addrTopic(storeAddr)},
		BlockNumber: block,
		TxHash:      common.HexToHash("0xf1"),
		Index:       0,
	}
}

func purchasedLog(t *testing.T, block uint64, txHash common.Hash, index uint, productID, quantity, totalPrice int64) types.Log {
	t.Helper()
	data, err := contracts.Store.Events[contracts.EventProductPurchased].Inputs.NonIndexed().Pack(
		big.NewInt(quantity), big.NewInt(totalPrice))
	if err != nil {
		t.Fatalf("pack purchase data: %v", err)
	}
	return types.Log{
		Address: storeAddr,
		Topics: []common.Hash{
			contracts.Store.Events[contracts.EventProductPurchased].ID,
			common.BigToHash(big.NewInt(productID)),
			addrTopic(buyerAddr),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

func TestSyncOnceDiscoversStore(t *testing.T) {
	h := newHarness(t)
	h.serveStoreInfo("Camera Shop", true)
	h.backend.SetHead(10, 1_700_000_500)
	h.backend.SetLogs([]types.Log{deployedLog(5)})

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if result.StoresDiscovered != 1 {
		t.Fatalf("StoresDiscovered = %d, want 1", result.StoresDiscovered)
	}

	rec, err := h.directory.GetByAddress(context.Background(), 31337, storeAddr.Hex())
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if rec.Name != "Camera Shop" {
		t.Errorf("Name = %q, want Camera Shop", rec.Name)
	}
	if rec.Owner != strings.ToLower(ownerAddr.Hex()) {
		t.Errorf("Owner = %q", rec.Owner)
	}
	if !rec.IsActive {
		t.Error("store should be active")
	}

	block, err := h.checkpoints.Get(context.Background(), 31337)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if block != 10 {
		t.Errorf("checkpoint = %d, want 10", block)
	}
}

func TestSyncOnceUnreadableStoreGetsPlaceholderRecord(t *testing.T) {
	h := newHarness(t)
	// No handler at the store address: getStoreInfo fails, the
	// deployment must still be recorded.
	h.backend.SetHead(10, 1_700_000_500)
	h.backend.SetLogs([]types.Log{deployedLog(5)})

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if result.StoresDiscovered != 1 {
		t.Fatalf("StoresDiscovered = %d, want 1", result.StoresDiscovered)
	}

	rec, err := h.directory.GetByAddress(context.Background(), 31337, storeAddr.Hex())
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if rec.Name != "" {
		t.Errorf("Name = %q, want empty", rec.Name)
	}
	if rec.Owner != strings.ToLower(ownerAddr.Hex()) {
		t.Errorf("Owner = %q", rec.Owner)
	}
}

func TestSyncOncePurchases(t *testing.T) {
	h := newHarness(t)
	h.serveStoreInfo("Camera Shop", true)
	h.backend.SetHead(20, 1_700_000_500)
	h.backend.SetLogs([]types.Log{
		deployedLog(5),
		purchasedLog(t, 12, common.HexToHash("0xaa"), 0, 1, 5, 500),
		purchasedLog(t, 12, common.HexToHash("0xaa"), 1, 2, 1, 99),
	})

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if result.PurchasesIngested != 2 {
		t.Fatalf("PurchasesIngested = %d, want 2", result.PurchasesIngested)
	}

	got, err := h.purchases.GetByStore(context.Background(), 31337, storeAddr.Hex())
	if err != nil {
		t.Fatalf("GetByStore: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("purchases = %d, want 2", len(got))
	}
	first := got[0]
	if first.ProductID != 1 || first.Quantity != "5" || first.TotalPrice != "500" {
		t.Errorf("unexpected record: %+v", first)
	}
	if first.Buyer != strings.ToLower(buyerAddr.Hex()) {
		t.Errorf("Buyer = %q", first.Buyer)
	}
	if first.Timestamp != 1_700_000_500 {
		t.Errorf("Timestamp = %d", first.Timestamp)
	}
}

func TestSyncOnceToleratesRescan(t *testing.T) {
	h := newHarness(t)
	h.serveStoreInfo("Camera Shop", true)
	h.backend.SetHead(20, 1_700_000_500)
	h.backend.SetLogs([]types.Log{
		deployedLog(5),
		purchasedLog(t, 12, common.HexToHash("0xaa"), 0, 1, 5, 500),
	})

	if _, err := h.indexer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Rewind the checkpoint to force a re-scan of the same logs.
	if err := h.checkpoints.Put(context.Background(), 31337, 1); err != nil {
		t.Fatal(err)
	}

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.PurchasesIngested != 0 {
		t.Errorf("PurchasesIngested = %d, want 0", result.PurchasesIngested)
	}
	if result.DuplicatesSkipped != 1 {
		t.Errorf("DuplicatesSkipped = %d, want 1", result.DuplicatesSkipped)
	}

	got, err := h.purchases.GetByStore(context.Background(), 31337, storeAddr.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("purchases = %d, want 1", len(got))
	}
}

func TestSyncOnceResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.backend.SetHead(20, 1_700_000_500)
	if err := h.checkpoints.Put(context.Background(), 31337, 20); err != nil {
		t.Fatal(err)
	}

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if result.FromBlock != 21 || result.ToBlock != 20 {
		t.Errorf("range = %d-%d, want 21-20 (nothing to scan)", result.FromBlock, result.ToBlock)
	}
	if h.backend.CallCount("eth_getLogs") != 0 {
		t.Errorf("eth_getLogs calls = %d, want 0", h.backend.CallCount("eth_getLogs"))
	}
}

func TestSyncOnceSeedsKnownStoresFromDirectory(t *testing.T) {
	h := newHarness(t)
	h.serveStoreInfo("Camera Shop", true)
	h.backend.SetHead(20, 1_700_000_500)

	// Store discovered by a previous process: present in the
	// directory, absent from the scanned logs.
	err := h.directory.Upsert(context.Background(), &storage.StoreRecord{
		ChainID: 31337,
		Address: strings.ToLower(storeAddr.Hex()),
		Owner:   strings.ToLower(ownerAddr.Hex()),
		Name:    "Camera Shop",
	})
	if err != nil {
		t.Fatal(err)
	}
	h.backend.SetLogs([]types.Log{
		purchasedLog(t, 12, common.HexToHash("0xaa"), 0, 1, 5, 500),
	})

	result, err := h.indexer.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if result.PurchasesIngested != 1 {
		t.Errorf("PurchasesIngested = %d, want 1", result.PurchasesIngested)
	}
}

func TestSyncOnceHeadFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.FailNext("eth_getBlockByNumber", errors.New("node down"), 1)

	_, err := h.indexer.SyncOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

// fakeSubscriber hands out buffered channels and lets tests push logs
// into all of them.
type fakeSubscriber struct {
	mu   sync.Mutex
	subs []chan types.Log
}

func (f *fakeSubscriber) SubscribeLogs(ctx context.Context, filter ethrpc.LogFilter) (<-chan types.Log, error) {
	ch := make(chan types.Log, 16)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeSubscriber) push(lg types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- lg
	}
}

func TestRunWakesOnPushedLog(t *testing.T) {
	h := newHarness(t)
	h.serveStoreInfo("Camera Shop", true)
	h.backend.SetHead(5, 1_700_000_000)

	sub := &fakeSubscriber{}
	logger := log.New(os.Stderr, "", 0)
	tokens := token.NewService(h.backend, logger)
	stores := store.NewService(h.backend, tokens, logger)
	ix := New(Options{
		Backend:     h.backend,
		ChainID:     31337,
		Factory:     factoryAddr,
		Stores:      stores,
		Directory:   h.directory,
		Purchases:   h.purchases,
		Checkpoints: h.checkpoints,
		Subscriber:  sub,
		StartBlock:  1,
		// Long enough that only the pushed log can trigger the second
		// sync within the test deadline.
		PollInterval: time.Minute,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx) }()

	waitFor(t, "initial sync", func() bool {
		block, err := h.checkpoints.Get(context.Background(), 31337)
		return err == nil && block == 5
	})

	// New deployment lands after the first pass; the pushed log must
	// wake the indexer without waiting out the poll interval.
	deployed := deployedLog(8)
	h.backend.SetLogs([]types.Log{deployed})
	h.backend.SetHead(10, 1_700_000_100)
	sub.push(deployed)

	waitFor(t, "store discovered", func() bool {
		_, err := h.directory.GetByAddress(context.Background(), 31337, storeAddr.Hex())
		return err == nil
	})

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunReportsSyncFailures(t *testing.T) {
	h := newHarness(t)
	h.backend.SetHead(5, 1_700_000_000)
	h.backend.FailNext("eth_getBlockByNumber", errors.New("node down"), 1)

	var mu sync.Mutex
	var failures []error

	logger := log.New(os.Stderr, "", 0)
	tokens := token.NewService(h.backend, logger)
	stores := store.NewService(h.backend, tokens, logger)
	ix := New(Options{
		Backend:      h.backend,
		ChainID:      31337,
		Factory:      factoryAddr,
		Stores:       stores,
		Directory:    h.directory,
		Purchases:    h.purchases,
		Checkpoints:  h.checkpoints,
		StartBlock:   1,
		PollInterval: 10 * time.Millisecond,
		OnSyncError: func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		},
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx) }()

	waitFor(t, "failure reported", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) >= 1
	})

	// The next tick recovers and the checkpoint advances.
	waitFor(t, "recovery", func() bool {
		block, err := h.checkpoints.Get(context.Background(), 31337)
		return err == nil && block == 5
	})

	mu.Lock()
	if failures[0] == nil {
		t.Error("failure callback received nil error")
	}
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.backend.SetHead(5, 1_700_000_000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.indexer.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
