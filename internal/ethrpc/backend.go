// Package ethrpc builds the read and write clients every service
// uses to reach the chain: endpoint failover dialing, retrying reads,
// transaction submission and receipt confirmation.
package ethrpc

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the chain surface the services depend on. It is the
// subset of ethclient.Client this module actually uses, kept as an
// interface so orchestration logic is testable without a live node.
type Backend interface {
	// ChainID retrieves the chain ID of the connected node.
	ChainID(ctx context.Context) (*big.Int, error)

	// CallContract executes a read-only call (or a dry run of a write)
	// against current chain state.
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// HeaderByNumber returns a block header; nil means latest.
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// TransactionReceipt returns the receipt of a mined transaction,
	// or ethereum.NotFound while it is still pending.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// BalanceAt returns the native balance of an account.
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)

	// FilterLogs returns logs matching the query.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	// PendingNonceAt returns the next nonce for an account.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasTipCap suggests a priority fee.
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)

	// EstimateGas estimates gas for a call message.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Compile-time check that the real client satisfies Backend.
var _ Backend = (*ethclient.Client)(nil)
