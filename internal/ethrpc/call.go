package ethrpc

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Call packs a method call, executes it read-only against latest
// state, and unpacks the outputs.
func Call(ctx context.Context, b Backend, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	output, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}

	results, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return results, nil
}

// Simulate dry-runs calldata as the given sender without spending
// gas. A non-nil error means the real transaction would revert.
func Simulate(ctx context.Context, b Backend, from, to common.Address, data []byte) error {
	_, err := b.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return &SimulationError{Cause: err}
	}
	return nil
}

// SimulationError reports that a dry run of a transaction predicted
// a revert, before any gas was spent.
type SimulationError struct {
	Cause error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation predicts revert: %v", e.Cause)
}

func (e *SimulationError) Unwrap() error { return e.Cause }
