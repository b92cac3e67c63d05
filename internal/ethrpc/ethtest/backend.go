// Package ethtest provides an in-memory Backend for exercising
// chain-facing services without a node.
package ethtest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler answers an eth_call directed at one contract address.
type CallHandler func(msg ethereum.CallMsg) ([]byte, error)

// Backend is a scripted, thread-safe implementation of
// ethrpc.Backend. Contract reads are routed to per-address handlers;
// receipts, balances and logs are set explicitly by tests.
type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	handlers map[common.Address]CallHandler

	receipts map[common.Hash]*types.Receipt
	// pendingPolls counts how many receipt lookups still answer
	// NotFound before the stored receipt becomes visible.
	pendingPolls map[common.Hash]int

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	logs     []types.Log
	header   *types.Header
	tipCap   *big.Int
	gasLimit uint64

	sent []*types.Transaction
	// OnSend runs after a transaction is recorded, outside the lock,
	// letting tests mine a receipt for it.
	OnSend func(tx *types.Transaction)

	calls map[string]int
	// failures holds scripted errors per method, consumed in order.
	failures map[string][]error
}

// NewBackend returns a backend reporting the given chain ID.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:      big.NewInt(chainID),
		handlers:     make(map[common.Address]CallHandler),
		receipts:     make(map[common.Hash]*types.Receipt),
		pendingPolls: make(map[common.Hash]int),
		balances:     make(map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		header:       &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)},
		tipCap:       big.NewInt(1_000_000_000),
		gasLimit:     100_000,
		calls:        make(map[string]int),
		failures:     make(map[string][]error),
	}
}

// Handle routes eth_call traffic for a contract address to fn.
func (b *Backend) Handle(addr common.Address, fn CallHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[addr] = fn
}

// SetReceipt makes a receipt immediately visible.
func (b *Backend) SetReceipt(hash common.Hash, r *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = r
}

// SetReceiptAfter makes a receipt visible only after polls lookups
// have answered NotFound.
func (b *Backend) SetReceiptAfter(hash common.Hash, r *types.Receipt, polls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = r
	b.pendingPolls[hash] = polls
}

// SetBalance sets an account's native balance.
func (b *Backend) SetBalance(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

// SetNonce sets an account's pending nonce.
func (b *Backend) SetNonce(addr common.Address, nonce uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonces[addr] = nonce
}

// SetHead sets the head block number and timestamp.
func (b *Backend) SetHead(number, time uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.header = &types.Header{
		Number:  new(big.Int).SetUint64(number),
		Time:    time,
		BaseFee: b.header.BaseFee,
	}
}

// SetLogs replaces the log set returned by FilterLogs.
func (b *Backend) SetLogs(logs []types.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append([]types.Log(nil), logs...)
}

// FailNext scripts the next n calls of a method to return err.
// Method names are the eth_* wire names ("eth_call",
// "eth_getTransactionReceipt", ...).
func (b *Backend) FailNext(method string, err error, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < n; i++ {
		b.failures[method] = append(b.failures[method], err)
	}
}

// Sent returns the transactions broadcast so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// CallCount reports how many times a method was invoked.
func (b *Backend) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// record bumps the call counter and pops a scripted failure if one is
// queued. Caller must hold the lock.
func (b *Backend) record(method string) error {
	b.calls[method]++
	queue := b.failures[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	b.failures[method] = queue[1:]
	return err
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	if err := b.record("eth_call"); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	var handler CallHandler
	if msg.To != nil {
		handler = b.handlers[*msg.To]
	}
	b.mu.Unlock()

	if handler == nil {
		if msg.To == nil {
			return nil, fmt.Errorf("ethtest: contract creation calls not supported")
		}
		return nil, fmt.Errorf("ethtest: no handler for contract %s", msg.To.Hex())
	}
	return handler(msg)
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_getBlockByNumber"); err != nil {
		return nil, err
	}
	return b.header, nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	if left := b.pendingPolls[txHash]; left > 0 {
		b.pendingPolls[txHash] = left - 1
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_getBalance"); err != nil {
		return nil, err
	}
	bal, ok := b.balances[account]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_getLogs"); err != nil {
		return nil, err
	}

	var out []types.Log
	for _, lg := range b.logs {
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, lg.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(lg.Topics) == 0 || !containsHash(q.Topics[0], lg.Topics[0]) {
				continue
			}
		}
		out = append(out, lg)
	}
	return out, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_getTransactionCount"); err != nil {
		return 0, err
	}
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(b.tipCap), nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("eth_estimateGas"); err != nil {
		return 0, err
	}
	return b.gasLimit, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	if err := b.record("eth_sendRawTransaction"); err != nil {
		b.mu.Unlock()
		return err
	}
	b.sent = append(b.sent, tx)
	b.nonces[senderOf(b.chainID, tx)] = tx.Nonce() + 1
	hook := b.OnSend
	b.mu.Unlock()

	if hook != nil {
		hook(tx)
	}
	return nil
}

func senderOf(chainID *big.Int, tx *types.Transaction) common.Address {
	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return common.Address{}
	}
	return from
}

func containsAddress(set []common.Address, a common.Address) bool {
	for _, x := range set {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(set []common.Hash, h common.Hash) bool {
	for _, x := range set {
		if x == h {
			return true
		}
	}
	return false
}
