// Package indexer mirrors on-chain retail activity into the off-chain
// stores: factory deployments feed the store directory, purchase
// events feed the purchase log. Progress is checkpointed per chain so
// restarts resume instead of rescanning.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/storage"
	"block-bazaar/internal/store"
)

// LogSubscriber pushes contract logs as they are emitted, typically
// over a websocket connection.
type LogSubscriber interface {
	SubscribeLogs(ctx context.Context, filter ethrpc.LogFilter) (<-chan types.Log, error)
}

// Options contains configuration for creating an Indexer.
type Options struct {
	Backend     ethrpc.Backend
	ChainID     uint64
	Factory     common.Address
	Stores      *store.Service
	Directory   storage.DirectoryStore
	Purchases   storage.PurchaseStore
	Checkpoints storage.CheckpointStore

	// Subscriber, when set, wakes Run as soon as a watched contract
	// emits a log instead of waiting out the poll interval. Scanning
	// itself always goes through eth_getLogs, so a dropped websocket
	// only costs latency, never events.
	Subscriber LogSubscriber

	// StartBlock is the first block scanned when no checkpoint exists,
	// typically the factory deployment block.
	StartBlock uint64
	// BatchSize caps the block span of one eth_getLogs call.
	BatchSize uint64
	// PollInterval is the pause between head checks in Run.
	PollInterval time.Duration
	// OnSync is called after every completed sync pass.
	OnSync func(*SyncResult)
	// OnSyncError is called when a sync pass fails in Run. Cancellation
	// is not reported; Run returns instead.
	OnSyncError func(error)

	Logger *log.Logger
}

// SyncResult contains statistics from one sync pass.
type SyncResult struct {
	FromBlock         uint64
	ToBlock           uint64
	StoresDiscovered  int
	StoresRefreshed   int
	PurchasesIngested int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// Indexer scans factory and store logs and persists them.
type Indexer struct {
	backend     ethrpc.Backend
	chainID     uint64
	factory     common.Address
	stores      *store.Service
	directory   storage.DirectoryStore
	purchases   storage.PurchaseStore
	checkpoints storage.CheckpointStore
	subscriber  LogSubscriber
	startBlock  uint64
	batchSize   uint64
	interval    time.Duration
	onSync      func(*SyncResult)
	onSyncError func(error)
	logger      *log.Logger

	// known tracks store addresses whose logs we filter for,
	// keyed by lowercase hex. Values are the owners.
	known map[common.Address]common.Address
}

// New creates an indexer.
func New(opts Options) *Indexer {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 2000
	}
	interval := opts.PollInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Indexer{
		backend:     opts.Backend,
		chainID:     opts.ChainID,
		factory:     opts.Factory,
		stores:      opts.Stores,
		directory:   opts.Directory,
		purchases:   opts.Purchases,
		checkpoints: opts.Checkpoints,
		subscriber:  opts.Subscriber,
		startBlock:  opts.StartBlock,
		batchSize:   batchSize,
		interval:    interval,
		onSync:      opts.OnSync,
		onSyncError: opts.OnSyncError,
		logger:      logger,
		known:       make(map[common.Address]common.Address),
	}
}

// Run syncs continuously until the context is cancelled. Individual
// sync failures are logged and retried on the next tick. With a
// Subscriber configured, pushed logs trigger a sync immediately; the
// poll ticker remains the fallback when the subscription drops.
func (ix *Indexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()

	wake := make(chan struct{}, 1)
	watched := make(map[common.Address]bool)
	if ix.subscriber != nil {
		ix.watch(ctx, ix.factory, wake, watched)
	}

	for {
		result, err := ix.SyncOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			ix.logger.Printf("indexer: sync failed: %v", err)
			if ix.onSyncError != nil {
				ix.onSyncError(err)
			}
		} else if result.StoresDiscovered > 0 || result.PurchasesIngested > 0 {
			ix.logger.Printf("indexer: blocks %d-%d: %d stores, %d purchases, %d dupes",
				result.FromBlock, result.ToBlock,
				result.StoresDiscovered, result.PurchasesIngested, result.DuplicatesSkipped)
		}

		if ix.subscriber != nil {
			for addr := range ix.known {
				ix.watch(ctx, addr, wake, watched)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

// watch subscribes to one contract's logs and coalesces every
// notification into a wake signal. Subscription failures are logged
// only; polling still covers the contract.
func (ix *Indexer) watch(ctx context.Context, addr common.Address, wake chan struct{}, watched map[common.Address]bool) {
	if watched[addr] {
		return
	}

	ch, err := ix.subscriber.SubscribeLogs(ctx, ethrpc.LogFilter{Addresses: []common.Address{addr}})
	if err != nil {
		ix.logger.Printf("indexer: subscribe %s: %v", addr.Hex(), err)
		return
	}
	watched[addr] = true

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
}

// SyncOnce scans from the checkpoint to the current head and persists
// everything found. The checkpoint only advances after a fully
// successful pass, so a failed pass is re-scanned; duplicate inserts
// are absorbed by the stores.
func (ix *Indexer) SyncOnce(ctx context.Context) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{}

	head, err := ix.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("fetch head: %w", err)
	}
	to := head.Number.Uint64()

	from := ix.startBlock
	checkpoint, err := ix.checkpoints.Get(ctx, ix.chainID)
	switch {
	case err == nil:
		from = checkpoint + 1
	case errors.Is(err, storage.ErrNotFound):
		// first run, scan from the start block
	default:
		return result, fmt.Errorf("load checkpoint: %w", err)
	}

	result.FromBlock = from
	result.ToBlock = to
	if from > to {
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := ix.loadKnownStores(ctx); err != nil {
		return result, fmt.Errorf("load known stores: %w", err)
	}

	for batchFrom := from; batchFrom <= to; batchFrom += ix.batchSize {
		batchTo := batchFrom + ix.batchSize - 1
		if batchTo > to {
			batchTo = to
		}

		// Deployments first so purchases at freshly discovered stores
		// inside the same batch are not missed.
		if err := ix.syncDeployments(ctx, batchFrom, batchTo, result); err != nil {
			return result, err
		}
		if err := ix.syncInitializations(ctx, batchFrom, batchTo, result); err != nil {
			return result, err
		}
		if err := ix.syncPurchases(ctx, batchFrom, batchTo, result); err != nil {
			return result, err
		}
	}

	if err := ix.checkpoints.Put(ctx, ix.chainID, to); err != nil {
		return result, fmt.Errorf("save checkpoint: %w", err)
	}

	result.Duration = time.Since(start)
	if ix.onSync != nil {
		ix.onSync(result)
	}
	return result, nil
}

// loadKnownStores seeds the known-store set from the directory so a
// restarted indexer filters purchase logs for stores discovered in
// earlier runs.
func (ix *Indexer) loadKnownStores(ctx context.Context) error {
	if len(ix.known) > 0 {
		return nil
	}
	records, err := ix.directory.ListByChain(ctx, ix.chainID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		ix.known[common.HexToAddress(rec.Address)] = common.HexToAddress(rec.Owner)
	}
	return nil
}

func (ix *Indexer) syncDeployments(ctx context.Context, from, to uint64, result *SyncResult) error {
	logs, err := ix.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ix.factory},
		Topics:    [][]common.Hash{{contracts.Factory.Events[contracts.EventStoreDeployed].ID}},
	})
	if err != nil {
		return fmt.Errorf("filter deployments %d-%d: %w", from, to, err)
	}

	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			result.Errors++
			continue
		}
		owner := common.BytesToAddress(lg.Topics[1].Bytes())
		storeAddr := common.BytesToAddress(lg.Topics[2].Bytes())

		if err := ix.upsertStore(ctx, storeAddr, owner); err != nil {
			ix.logger.Printf("indexer: upsert store %s: %v", storeAddr.Hex(), err)
			result.Errors++
			continue
		}
		ix.known[storeAddr] = owner
		result.StoresDiscovered++
	}
	return nil
}

func (ix *Indexer) syncInitializations(ctx context.Context, from, to uint64, result *SyncResult) error {
	addrs := ix.knownAddresses()
	if len(addrs) == 0 {
		return nil
	}

	logs, err := ix.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addrs,
		Topics:    [][]common.Hash{{contracts.Store.Events[contracts.EventStoreInitialized].ID}},
	})
	if err != nil {
		return fmt.Errorf("filter initializations %d-%d: %w", from, to, err)
	}

	for _, lg := range logs {
		owner, ok := ix.known[lg.Address]
		if !ok {
			continue
		}
		if err := ix.upsertStore(ctx, lg.Address, owner); err != nil {
			ix.logger.Printf("indexer: refresh store %s: %v", lg.Address.Hex(), err)
			result.Errors++
			continue
		}
		result.StoresRefreshed++
	}
	return nil
}

func (ix *Indexer) syncPurchases(ctx context.Context, from, to uint64, result *SyncResult) error {
	addrs := ix.knownAddresses()
	if len(addrs) == 0 {
		return nil
	}

	logs, err := ix.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addrs,
		Topics:    [][]common.Hash{{contracts.Store.Events[contracts.EventProductPurchased].ID}},
	})
	if err != nil {
		return fmt.Errorf("filter purchases %d-%d: %w", from, to, err)
	}

	// Block timestamps are shared by every log in the block; fetch
	// each header once per pass.
	blockTimes := make(map[uint64]int64)

	for _, lg := range logs {
		rec, err := ix.purchaseFromLog(ctx, lg, blockTimes)
		if err != nil {
			ix.logger.Printf("indexer: decode purchase %s[%d]: %v", lg.TxHash.Hex(), lg.Index, err)
			result.Errors++
			continue
		}

		if err := ix.purchases.Insert(ctx, rec); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Expected on re-scan after a partial pass.
				result.DuplicatesSkipped++
				continue
			}
			ix.logger.Printf("indexer: store purchase %s[%d]: %v", lg.TxHash.Hex(), lg.Index, err)
			result.Errors++
			continue
		}
		result.PurchasesIngested++
	}
	return nil
}

func (ix *Indexer) purchaseFromLog(ctx context.Context, lg types.Log, blockTimes map[uint64]int64) (*storage.PurchaseRecord, error) {
	if len(lg.Topics) < 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}
	productID := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	buyer := common.BytesToAddress(lg.Topics[2].Bytes())

	values, err := contracts.Store.Events[contracts.EventProductPurchased].Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("expected 2 data fields, got %d", len(values))
	}
	quantity, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quantity is not uint256")
	}
	totalPrice, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("total price is not uint256")
	}

	ts, ok := blockTimes[lg.BlockNumber]
	if !ok {
		header, err := ix.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
		if err != nil {
			return nil, fmt.Errorf("fetch block %d: %w", lg.BlockNumber, err)
		}
		ts = int64(header.Time)
		blockTimes[lg.BlockNumber] = ts
	}

	return &storage.PurchaseRecord{
		ChainID:      ix.chainID,
		StoreAddress: strings.ToLower(lg.Address.Hex()),
		TxHash:       strings.ToLower(lg.TxHash.Hex()),
		LogIndex:     uint32(lg.Index),
		BlockNumber:  lg.BlockNumber,
		ProductID:    productID.Uint64(),
		Buyer:        strings.ToLower(buyer.Hex()),
		Quantity:     quantity.String(),
		TotalPrice:   totalPrice.String(),
		Timestamp:    ts,
	}, nil
}

// upsertStore writes a directory record for a store, reading its
// public state best-effort. A store that cannot be read yet (not
// initialized) is recorded with empty metadata and refreshed when its
// StoreInitialized event arrives.
func (ix *Indexer) upsertStore(ctx context.Context, storeAddr, owner common.Address) error {
	rec := &storage.StoreRecord{
		ChainID: ix.chainID,
		Address: strings.ToLower(storeAddr.Hex()),
		Owner:   strings.ToLower(owner.Hex()),
	}

	info, err := ix.stores.GetStoreInfo(ctx, storeAddr)
	if err != nil {
		ix.logger.Printf("indexer: store %s not readable yet: %v", storeAddr.Hex(), err)
	} else {
		rec.Name = info.Name
		rec.Description = info.Description
		rec.TokenAddress = strings.ToLower(info.TokenAddress.Hex())
		rec.IsActive = info.IsActive
		rec.CreatedAt = info.CreatedAt.Unix()
	}

	return ix.directory.Upsert(ctx, rec)
}

func (ix *Indexer) knownAddresses() []common.Address {
	addrs := make([]common.Address, 0, len(ix.known))
	for addr := range ix.known {
		addrs = append(addrs, addr)
	}
	return addrs
}
