package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RevertError reports a transaction that was mined but reverted.
// It is distinct from submission and timeout failures so callers can
// tell "execution failed" from "never confirmed".
type RevertError struct {
	Receipt *types.Receipt
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %s",
		e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber)
}

// IsRevert reports whether err carries a reverted receipt.
func IsRevert(err error) bool {
	var re *RevertError
	return errors.As(err, &re)
}

// WaitMined polls until the transaction is mined, then inspects its
// status. Every mutating flow passes through here before declaring
// success. Returns RevertError when the receipt status is failed.
func WaitMined(ctx context.Context, b Backend, txHash common.Hash) (*types.Receipt, error) {
	return WaitMinedInterval(ctx, b, txHash, DefaultPollInterval)
}

// WaitMinedInterval is WaitMined with an explicit poll interval.
func WaitMinedInterval(ctx context.Context, b Backend, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				backendMetrics(b).RecordTxReverted()
				return nil, &RevertError{Receipt: receipt}
			}
			backendMetrics(b).RecordTxConfirmed(time.Since(start).Seconds())
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			// Still pending.
		default:
			// Transient lookup failure; keep polling until the context
			// gives up.
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wait for tx %s: %w (last error: %v)", txHash.Hex(), ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("wait for tx %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
