// Package store wraps a deployed store contract: catalog reads,
// initialization, purchases and owner operations.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/token"
)

// Sentinel errors for preflight failures, before anything is signed.
var (
	// ErrInsufficientFunds means the sender cannot cover the payment.
	ErrInsufficientFunds = errors.New("store: insufficient token balance")
	// ErrNotInitialized means the store has no token yet.
	ErrNotInitialized = errors.New("store: not initialized")
)

// Product is one catalog entry.
type Product struct {
	ID          *big.Int
	Name        string
	Description string
	Price       *big.Int
	Stock       *big.Int
	IsActive    bool
}

// Info is the store's public state.
type Info struct {
	Address      common.Address
	Name         string
	Description  string
	TokenAddress common.Address
	TokenBalance *big.Int
	IsActive     bool
	CreatedAt    time.Time

	// TokenTotalSupply is filled best-effort from the store token;
	// nil when the enrichment read failed.
	TokenTotalSupply *big.Int
}

// Purchase is one completed sale.
type Purchase struct {
	ProductID  *big.Int
	Buyer      common.Address
	Quantity   *big.Int
	TotalPrice *big.Int
	Timestamp  time.Time
}

// InitParams are the arguments of store initialization.
type InitParams struct {
	Name               string
	Description        string
	TokenName          string
	TokenSymbol        string
	InitialTokenSupply *big.Int
	StableLiquidity    *big.Int
}

// Service exposes the operations of store contracts. One service
// handles any number of stores; the store address is an argument.
type Service struct {
	backend ethrpc.Backend
	tokens  *token.Service
	logger  *log.Logger
}

// NewService builds a store service.
func NewService(backend ethrpc.Backend, tokens *token.Service, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: backend, tokens: tokens, logger: logger}
}

// ABI tuple shapes. Field order and title-cased names must match the
// tuple components.
type storeInfoTuple struct {
	Name         string
	Description  string
	TokenAddress common.Address
	TokenBalance *big.Int
	IsActive     bool
	CreatedAt    *big.Int
}

type productTuple struct {
	Id          *big.Int
	Name        string
	Description string
	Price       *big.Int
	Stock       *big.Int
	IsActive    bool
}

type purchaseTuple struct {
	ProductId  *big.Int
	Buyer      common.Address
	Quantity   *big.Int
	TotalPrice *big.Int
	Timestamp  *big.Int
}

// GetStoreInfo reads the store's public state and enriches it with
// the token's total supply. The enrichment is best-effort: a failing
// supply read leaves TokenTotalSupply nil rather than failing the
// whole call.
func (s *Service) GetStoreInfo(ctx context.Context, store common.Address) (*Info, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "getStoreInfo")
	if err != nil {
		return nil, fmt.Errorf("store info for %s: %w", store.Hex(), err)
	}
	raw := *abi.ConvertType(out[0], new(storeInfoTuple)).(*storeInfoTuple)

	info := &Info{
		Address:      store,
		Name:         raw.Name,
		Description:  raw.Description,
		TokenAddress: raw.TokenAddress,
		TokenBalance: raw.TokenBalance,
		IsActive:     raw.IsActive,
		CreatedAt:    time.Unix(raw.CreatedAt.Int64(), 0).UTC(),
	}

	if info.TokenAddress != (common.Address{}) {
		supply, err := s.tokens.TotalSupply(ctx, info.TokenAddress)
		if err != nil {
			s.logger.Printf("token supply read failed for %s: %v", info.TokenAddress.Hex(), err)
		} else {
			info.TokenTotalSupply = supply
		}
	}
	return info, nil
}

// InitializeStore funds and activates a freshly deployed store. It
// verifies the stable balance, grants the store an allowance when the
// current one is short, dry-runs the call, and only then submits and
// waits for confirmation.
func (s *Service) InitializeStore(ctx context.Context, w *ethrpc.WriteClient, store, router, stableToken common.Address, p InitParams) (common.Hash, error) {
	from := w.From()

	balance, err := s.tokens.BalanceOf(ctx, stableToken, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read stable balance: %w", err)
	}
	if balance.Cmp(p.StableLiquidity) < 0 {
		return common.Hash{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, p.StableLiquidity)
	}

	allowance, err := s.tokens.Allowance(ctx, stableToken, from, store)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read stable allowance: %w", err)
	}
	if allowance.Cmp(p.StableLiquidity) < 0 {
		s.logger.Printf("allowance %s below %s, approving store %s", allowance, p.StableLiquidity, store.Hex())
		if _, err := s.tokens.ApproveAndWait(ctx, w, stableToken, store, p.StableLiquidity); err != nil {
			return common.Hash{}, fmt.Errorf("approve stable liquidity: %w", err)
		}
	}

	data, err := contracts.Store.Pack("initializeStore",
		p.Name, p.Description, p.TokenName, p.TokenSymbol,
		p.InitialTokenSupply, router, stableToken, p.StableLiquidity)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack initializeStore: %w", err)
	}

	if err := ethrpc.Simulate(ctx, s.backend, from, store, data); err != nil {
		return common.Hash{}, fmt.Errorf("initializeStore %s: %w", store.Hex(), err)
	}

	hash, err := w.Submit(ctx, store, data)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := ethrpc.WaitMined(ctx, s.backend, hash); err != nil {
		return hash, err
	}

	s.logger.Printf("initialized store %s (%s) in tx %s", store.Hex(), p.Name, hash.Hex())
	return hash, nil
}

// AddProduct lists a new product and returns the transaction hash
// after confirmation.
func (s *Service) AddProduct(ctx context.Context, w *ethrpc.WriteClient, store common.Address, name, description string, price, stock *big.Int) (common.Hash, error) {
	data, err := contracts.Store.Pack("addProduct", name, description, price, stock)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack addProduct: %w", err)
	}
	return s.submitAndWait(ctx, w, store, data)
}

// UpdateProduct changes the price, stock or active flag of a listing.
func (s *Service) UpdateProduct(ctx context.Context, w *ethrpc.WriteClient, store common.Address, productID, price, stock *big.Int, isActive bool) (common.Hash, error) {
	data, err := contracts.Store.Pack("updateProduct", productID, price, stock, isActive)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack updateProduct: %w", err)
	}
	return s.submitAndWait(ctx, w, store, data)
}

// GetProduct reads one catalog entry.
func (s *Service) GetProduct(ctx context.Context, store common.Address, productID *big.Int) (*Product, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "getProduct", productID)
	if err != nil {
		return nil, fmt.Errorf("product %s of store %s: %w", productID, store.Hex(), err)
	}
	raw := *abi.ConvertType(out[0], new(productTuple)).(*productTuple)
	return &Product{
		ID:          raw.Id,
		Name:        raw.Name,
		Description: raw.Description,
		Price:       raw.Price,
		Stock:       raw.Stock,
		IsActive:    raw.IsActive,
	}, nil
}

// NextProductID returns the ID the next listing will receive.
// Product IDs start at 1, so the catalog holds IDs 1..n-1.
func (s *Service) NextProductID(ctx context.Context, store common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "nextProductId")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// GetAllProducts reads the whole catalog with one concurrent read per
// product. A failing read skips that product and bumps the failed
// counter instead of failing the sweep; the result is ordered by ID.
func (s *Service) GetAllProducts(ctx context.Context, store common.Address) ([]Product, int, error) {
	next, err := s.NextProductID(ctx, store)
	if err != nil {
		return nil, 0, fmt.Errorf("product count for %s: %w", store.Hex(), err)
	}

	count := next.Int64() - 1
	if count <= 0 {
		return nil, 0, nil
	}

	products := make([]*Product, count)
	var failed int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := int64(1); i <= count; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			p, err := s.GetProduct(ctx, store, big.NewInt(id))
			if err != nil {
				s.logger.Printf("skipping product %d of %s: %v", id, store.Hex(), err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			products[id-1] = p
		}(i)
	}
	wg.Wait()

	out := make([]Product, 0, count)
	for _, p := range products {
		if p != nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Cmp(out[j].ID) < 0 })
	return out, int(failed), nil
}

// PurchaseProduct buys quantity units of a product, paying with the
// store's own token. Balance and allowance are checked up front so
// the common failure modes surface before anything is signed.
func (s *Service) PurchaseProduct(ctx context.Context, w *ethrpc.WriteClient, store common.Address, productID, quantity *big.Int) (common.Hash, error) {
	from := w.From()

	product, err := s.GetProduct(ctx, store, productID)
	if err != nil {
		return common.Hash{}, err
	}
	totalPrice := new(big.Int).Mul(product.Price, quantity)

	shopToken, err := s.StoreToken(ctx, store)
	if err != nil {
		return common.Hash{}, err
	}
	if shopToken == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("%w: store %s has no token", ErrNotInitialized, store.Hex())
	}

	balance, err := s.tokens.BalanceOf(ctx, shopToken, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read token balance: %w", err)
	}
	if balance.Cmp(totalPrice) < 0 {
		return common.Hash{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, totalPrice)
	}

	allowance, err := s.tokens.Allowance(ctx, shopToken, from, store)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read token allowance: %w", err)
	}
	if allowance.Cmp(totalPrice) < 0 {
		if _, err := s.tokens.ApproveAndWait(ctx, w, shopToken, store, totalPrice); err != nil {
			return common.Hash{}, fmt.Errorf("approve purchase: %w", err)
		}
	}

	data, err := contracts.Store.Pack("purchaseProduct", productID, quantity)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack purchaseProduct: %w", err)
	}
	hash, err := s.submitAndWait(ctx, w, store, data)
	if err != nil {
		return hash, err
	}

	s.logger.Printf("purchased %s x product %s from %s (tx %s)", quantity, productID, store.Hex(), hash.Hex())
	return hash, nil
}

// PurchaseHistory returns every completed sale, oldest first.
func (s *Service) PurchaseHistory(ctx context.Context, store common.Address) ([]Purchase, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "getPurchaseHistory")
	if err != nil {
		return nil, fmt.Errorf("purchase history for %s: %w", store.Hex(), err)
	}
	raw := *abi.ConvertType(out[0], new([]purchaseTuple)).(*[]purchaseTuple)

	purchases := make([]Purchase, len(raw))
	for i, p := range raw {
		purchases[i] = Purchase{
			ProductID:  p.ProductId,
			Buyer:      p.Buyer,
			Quantity:   p.Quantity,
			TotalPrice: p.TotalPrice,
			Timestamp:  time.Unix(p.Timestamp.Int64(), 0).UTC(),
		}
	}
	return purchases, nil
}

// DistributeTokens sends store tokens from the contract's reserve to
// a batch of customers. Owner only.
func (s *Service) DistributeTokens(ctx context.Context, w *ethrpc.WriteClient, store common.Address, customers []common.Address, amounts []*big.Int) (common.Hash, error) {
	if len(customers) != len(amounts) {
		return common.Hash{}, fmt.Errorf("store: %d customers but %d amounts", len(customers), len(amounts))
	}
	data, err := contracts.Store.Pack("distributeTokens", customers, amounts)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack distributeTokens: %w", err)
	}
	return s.submitAndWait(ctx, w, store, data)
}

// WithdrawTokens moves revenue out of the contract. Owner only.
func (s *Service) WithdrawTokens(ctx context.Context, w *ethrpc.WriteClient, store common.Address, amount *big.Int) (common.Hash, error) {
	data, err := contracts.Store.Pack("withdrawTokens", amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack withdrawTokens: %w", err)
	}
	return s.submitAndWait(ctx, w, store, data)
}

// TotalRevenue returns the lifetime revenue in store tokens.
func (s *Service) TotalRevenue(ctx context.Context, store common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "totalRevenue")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// ContractTokenBalance returns the store token held by the contract.
func (s *Service) ContractTokenBalance(ctx context.Context, store common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "getContractTokenBalance")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// CustomerTokenBalance returns a customer's store token balance as
// tracked by the contract.
func (s *Service) CustomerTokenBalance(ctx context.Context, store, customer common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "getCustomerTokenBalance", customer)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// UserTokenBalance resolves the store's token and reads the user's
// ERC-20 balance on it. Returns ErrNotInitialized when the store has
// no token yet.
func (s *Service) UserTokenBalance(ctx context.Context, store, user common.Address) (*big.Int, error) {
	shopToken, err := s.StoreToken(ctx, store)
	if err != nil {
		return nil, err
	}
	if shopToken == (common.Address{}) {
		return nil, fmt.Errorf("%w: store %s has no token", ErrNotInitialized, store.Hex())
	}
	return s.tokens.BalanceOf(ctx, shopToken, user)
}

// StoreToken returns the store's ERC-20 token address, which is the
// zero address until the store is initialized.
func (s *Service) StoreToken(ctx context.Context, store common.Address) (common.Address, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "storeToken")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// Owner returns the store owner's address.
func (s *Service) Owner(ctx context.Context, store common.Address) (common.Address, error) {
	out, err := ethrpc.Call(ctx, s.backend, store, contracts.Store, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (s *Service) submitAndWait(ctx context.Context, w *ethrpc.WriteClient, to common.Address, data []byte) (common.Hash, error) {
	hash, err := w.Submit(ctx, to, data)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := ethrpc.WaitMined(ctx, s.backend, hash); err != nil {
		return hash, err
	}
	return hash, nil
}
