package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// retryBackend wraps a Backend and retries transient read failures
// with exponential backoff. Errors the node itself answered with
// (JSON-RPC errors, including reverts) and ethereum.NotFound are
// returned immediately; only transport-level failures are retried.
// SendTransaction is never retried.
type retryBackend struct {
	inner Backend
	opts  options
}

func newRetryBackend(inner Backend, o options) *retryBackend {
	return &retryBackend{inner: inner, opts: o}
}

// NewRetryBackend wraps an existing backend with the retry policy.
// Used by callers that build their own client instead of Dial.
func NewRetryBackend(inner Backend, opts ...Option) Backend {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newRetryBackend(inner, o)
}

// retriable reports whether an error is worth retrying.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	// The node answered: retrying would just repeat the same answer.
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return false
	}
	return true
}

// retry runs one logical call through the retry loop and records its
// total duration and final outcome.
func retry[T any](ctx context.Context, b *retryBackend, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := retryLoop(ctx, b, op, fn)
	b.opts.metrics.RecordRPCCall(op, time.Since(start).Seconds(), err)
	return result, err
}

func retryLoop[T any](ctx context.Context, b *retryBackend, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := b.opts.retryDelay
	var lastErr error

	for attempt := 0; attempt <= b.opts.maxRetries; attempt++ {
		if attempt > 0 {
			b.opts.metrics.RecordRPCRetry()
			b.opts.logger.Printf("retrying %s (attempt %d/%d): %v", op, attempt, b.opts.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * b.opts.backoffMult)
			if delay > b.opts.maxDelay {
				delay = b.opts.maxDelay
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !retriable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}

func (b *retryBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return retry(ctx, b, "eth_chainId", func(ctx context.Context) (*big.Int, error) {
		return b.inner.ChainID(ctx)
	})
}

func (b *retryBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return retry(ctx, b, "eth_call", func(ctx context.Context) ([]byte, error) {
		return b.inner.CallContract(ctx, msg, blockNumber)
	})
}

func (b *retryBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return retry(ctx, b, "eth_getBlockByNumber", func(ctx context.Context) (*types.Header, error) {
		return b.inner.HeaderByNumber(ctx, number)
	})
}

func (b *retryBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return retry(ctx, b, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return b.inner.TransactionReceipt(ctx, txHash)
	})
}

func (b *retryBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return retry(ctx, b, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return b.inner.BalanceAt(ctx, account, blockNumber)
	})
}

func (b *retryBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return retry(ctx, b, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
		return b.inner.FilterLogs(ctx, q)
	})
}

func (b *retryBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return retry(ctx, b, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return b.inner.PendingNonceAt(ctx, account)
	})
}

func (b *retryBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return retry(ctx, b, "eth_maxPriorityFeePerGas", func(ctx context.Context) (*big.Int, error) {
		return b.inner.SuggestGasTipCap(ctx)
	})
}

func (b *retryBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return retry(ctx, b, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return b.inner.EstimateGas(ctx, msg)
	})
}

// SendTransaction is deliberately not retried: a transport error
// leaves the broadcast state unknown, and resubmitting is the
// caller's decision.
func (b *retryBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	start := time.Now()
	err := b.inner.SendTransaction(ctx, tx)
	b.opts.metrics.RecordRPCCall("eth_sendRawTransaction", time.Since(start).Seconds(), err)
	return err
}

// Metrics exposes the configured sink so the transaction helpers can
// record lifecycle events through the backend they already hold.
func (b *retryBackend) Metrics() Metrics {
	return b.opts.metrics
}
