package ethtest

import (
	"fmt"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MethodFunc implements one contract method for a fake contract. It
// receives the decoded inputs and the caller, and returns the values
// to encode as outputs. Returning an error models a revert.
type MethodFunc func(msg ethereum.CallMsg, args []interface{}) ([]interface{}, error)

// Contract dispatches eth_call traffic by method selector against a
// real ABI, so fakes speak the same encoding as production code.
type Contract struct {
	abi abi.ABI

	mu      sync.Mutex
	methods map[string]MethodFunc
}

// NewContract builds a fake contract for the given ABI.
func NewContract(contractABI abi.ABI) *Contract {
	return &Contract{
		abi:     contractABI,
		methods: make(map[string]MethodFunc),
	}
}

// On registers the implementation of a method by name.
func (c *Contract) On(method string, fn MethodFunc) *Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[method] = fn
	return c
}

// Returns registers a method that always answers with fixed values.
func (c *Contract) Returns(method string, values ...interface{}) *Contract {
	return c.On(method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return values, nil
	})
}

// Reverts registers a method that always fails with the given reason.
func (c *Contract) Reverts(method, reason string) *Contract {
	return c.On(method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return nil, fmt.Errorf("execution reverted: %s", reason)
	})
}

// Handler adapts the contract for Backend.Handle.
func (c *Contract) Handler() CallHandler {
	return func(msg ethereum.CallMsg) ([]byte, error) {
		if len(msg.Data) < 4 {
			return nil, fmt.Errorf("ethtest: calldata shorter than a selector")
		}

		method, err := c.abi.MethodById(msg.Data[:4])
		if err != nil {
			return nil, fmt.Errorf("ethtest: %w", err)
		}

		c.mu.Lock()
		fn := c.methods[method.Name]
		c.mu.Unlock()
		if fn == nil {
			return nil, fmt.Errorf("ethtest: method %s not scripted", method.Name)
		}

		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, fmt.Errorf("ethtest: unpack %s inputs: %w", method.Name, err)
		}

		rets, err := fn(msg, args)
		if err != nil {
			return nil, err
		}

		out, err := method.Outputs.Pack(rets...)
		if err != nil {
			return nil, fmt.Errorf("ethtest: pack %s outputs: %w", method.Name, err)
		}
		return out, nil
	}
}
