// Package factory talks to the retail factory contract: deploying
// stores, resolving ownership and assembling the store directory.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/store"
)

// ErrNoDeployEvent means a creation transaction confirmed without
// emitting StoreDeployed, so the new store's address is unknowable.
var ErrNoDeployEvent = errors.New("factory: no StoreDeployed event in receipt")

// Service wraps one deployed factory contract.
type Service struct {
	backend ethrpc.Backend
	addr    common.Address
	stores  *store.Service
	logger  *log.Logger
}

// NewService builds a factory service bound to the factory address.
func NewService(backend ethrpc.Backend, addr common.Address, stores *store.Service, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: backend, addr: addr, stores: stores, logger: logger}
}

// Address returns the factory contract address.
func (s *Service) Address() common.Address {
	return s.addr
}

// CreateStore deploys a new store and returns its address. The
// address is recovered from the StoreDeployed event in the receipt;
// the call's return value is not observable from a transaction.
func (s *Service) CreateStore(ctx context.Context, w *ethrpc.WriteClient) (common.Address, common.Hash, error) {
	data, err := contracts.Factory.Pack("createStore")
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("pack createStore: %w", err)
	}

	hash, err := w.Submit(ctx, s.addr, data)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}

	receipt, err := ethrpc.WaitMined(ctx, s.backend, hash)
	if err != nil {
		return common.Address{}, hash, err
	}

	storeAddr, err := s.extractDeployedStore(receipt)
	if err != nil {
		return common.Address{}, hash, err
	}

	s.logger.Printf("store %s deployed by %s (tx %s)", storeAddr.Hex(), w.From().Hex(), hash.Hex())
	return storeAddr, hash, nil
}

// extractDeployedStore scans receipt logs for the factory's
// StoreDeployed event and returns the store address from the first
// match. Only the emitting address is checked: logs from other
// contracts in the same receipt are ignored, but the owner topic is
// not compared against the sender, since the factory may attribute
// the store to a different account (e.g. a relayed deployment).
func (s *Service) extractDeployedStore(receipt *types.Receipt) (common.Address, error) {
	eventID := contracts.Factory.Events[contracts.EventStoreDeployed].ID

	for _, lg := range receipt.Logs {
		if lg.Address != s.addr {
			continue
		}
		if len(lg.Topics) < 3 || lg.Topics[0] != eventID {
			continue
		}
		return common.BytesToAddress(lg.Topics[2].Bytes()), nil
	}
	return common.Address{}, fmt.Errorf("%w (tx %s)", ErrNoDeployEvent, receipt.TxHash.Hex())
}

// AllStores returns every store the factory has deployed, in
// deployment order.
func (s *Service) AllStores(ctx context.Context) ([]common.Address, error) {
	out, err := ethrpc.Call(ctx, s.backend, s.addr, contracts.Factory, "getAllStores")
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out[0].([]common.Address), nil
}

// StoresByOwner returns the stores deployed by one owner.
func (s *Service) StoresByOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	out, err := ethrpc.Call(ctx, s.backend, s.addr, contracts.Factory, "getStoresByOwner", owner)
	if err != nil {
		return nil, fmt.Errorf("stores of %s: %w", owner.Hex(), err)
	}
	return out[0].([]common.Address), nil
}

// StoreOwner resolves the owner of a store address.
func (s *Service) StoreOwner(ctx context.Context, storeAddr common.Address) (common.Address, error) {
	out, err := ethrpc.Call(ctx, s.backend, s.addr, contracts.Factory, "storeToOwner", storeAddr)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// StoreWithOwner pairs a store address with its owner.
type StoreWithOwner struct {
	Store common.Address
	Owner common.Address
}

// AllStoresWithOwners lists every store with its owner, resolving
// owners concurrently. An owner lookup that fails yields the zero
// address rather than failing the listing.
func (s *Service) AllStoresWithOwners(ctx context.Context) ([]StoreWithOwner, error) {
	stores, err := s.AllStores(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]StoreWithOwner, len(stores))
	var wg sync.WaitGroup
	for i, addr := range stores {
		result[i].Store = addr
		wg.Add(1)
		go func(i int, addr common.Address) {
			defer wg.Done()
			owner, err := s.StoreOwner(ctx, addr)
			if err != nil {
				s.logger.Printf("owner lookup failed for %s: %v", addr.Hex(), err)
				return
			}
			result[i].Owner = owner
		}(i, addr)
	}
	wg.Wait()
	return result, nil
}

// DirectoryEntry is one row of the public store directory.
type DirectoryEntry struct {
	Address common.Address
	Name    string
	Info    *store.Info

	// Synthesized marks entries whose info read failed and whose
	// fields are placeholders derived from the address.
	Synthesized bool
}

// Directory builds the full store directory. Every deployed store
// gets exactly one entry: stores whose info cannot be read appear as
// synthesized placeholders so the listing length always matches the
// on-chain store count.
func (s *Service) Directory(ctx context.Context) ([]DirectoryEntry, error) {
	stores, err := s.AllStores(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]DirectoryEntry, len(stores))
	var wg sync.WaitGroup
	for i, addr := range stores {
		wg.Add(1)
		go func(i int, addr common.Address) {
			defer wg.Done()
			info, err := s.stores.GetStoreInfo(ctx, addr)
			if err != nil {
				s.logger.Printf("directory: info read failed for %s: %v", addr.Hex(), err)
				entries[i] = placeholderEntry(i, addr)
				return
			}
			entries[i] = DirectoryEntry{Address: addr, Name: info.Name, Info: info}
		}(i, addr)
	}
	wg.Wait()
	return entries, nil
}

// placeholderEntry synthesizes a directory row for an unreadable
// store, named by position and address prefix.
func placeholderEntry(i int, addr common.Address) DirectoryEntry {
	return DirectoryEntry{
		Address:     addr,
		Name:        fmt.Sprintf("Store #%d (%s…)", i+1, addr.Hex()[:10]),
		Synthesized: true,
	}
}

// InitProgress reports the stage of a combined create-and-initialize
// flow as it advances.
type InitProgress func(stage string)

// Create-and-initialize stages, in order.
const (
	StageCreating     = "creating"
	StageInitializing = "initializing"
	StageDone         = "done"
)

// CreateAndInitialize deploys a store and immediately initializes
// it. The two transactions are strictly ordered: initialization only
// starts after the deployment is confirmed and the new address is
// known. Returns the new store address.
func (s *Service) CreateAndInitialize(ctx context.Context, w *ethrpc.WriteClient, router, stableToken common.Address, params store.InitParams, progress InitProgress) (common.Address, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress(StageCreating)
	storeAddr, _, err := s.CreateStore(ctx, w)
	if err != nil {
		return common.Address{}, fmt.Errorf("create store: %w", err)
	}

	progress(StageInitializing)
	if _, err := s.stores.InitializeStore(ctx, w, storeAddr, router, stableToken, params); err != nil {
		return storeAddr, fmt.Errorf("initialize store %s: %w", storeAddr.Hex(), err)
	}

	progress(StageDone)
	return storeAddr, nil
}
