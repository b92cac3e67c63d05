// Package token reads and mutates ERC-20 state: metadata, balances,
// allowances and approvals.
package token

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
)

// Info is the static metadata of an ERC-20 token plus its supply.
type Info struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Service answers ERC-20 queries against any token contract.
type Service struct {
	backend ethrpc.Backend
	logger  *log.Logger
}

// NewService builds a token service on the given backend.
func NewService(backend ethrpc.Backend, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{backend: backend, logger: logger}
}

// Info fetches name, symbol, decimals and total supply with one
// concurrent read each. All four must succeed.
func (s *Service) Info(ctx context.Context, token common.Address) (*Info, error) {
	info := &Info{Address: token}

	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "name")
		if err != nil {
			errs[0] = err
			return
		}
		info.Name = out[0].(string)
	}()
	go func() {
		defer wg.Done()
		out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "symbol")
		if err != nil {
			errs[1] = err
			return
		}
		info.Symbol = out[0].(string)
	}()
	go func() {
		defer wg.Done()
		out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "decimals")
		if err != nil {
			errs[2] = err
			return
		}
		info.Decimals = out[0].(uint8)
	}()
	go func() {
		defer wg.Done()
		out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "totalSupply")
		if err != nil {
			errs[3] = err
			return
		}
		info.TotalSupply = out[0].(*big.Int)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("token info for %s: %w", token.Hex(), err)
		}
	}
	return info, nil
}

// BalanceOf returns the token balance of an account.
func (s *Service) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TotalSupply returns the token's total supply.
func (s *Service) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "totalSupply")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Allowance returns how much spender may move on owner's behalf.
func (s *Service) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, token, contracts.ERC20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// Approve submits an approval and returns the transaction hash
// without waiting for confirmation.
func (s *Service) Approve(ctx context.Context, w *ethrpc.WriteClient, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := contracts.ERC20.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}

	hash, err := w.Submit(ctx, token, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("approve %s for %s: %w", token.Hex(), spender.Hex(), err)
	}
	s.logger.Printf("approved %s to spend %s of %s (tx %s)", spender.Hex(), amount, token.Hex(), hash.Hex())
	return hash, nil
}

// ApproveAndWait submits an approval and blocks until it is mined.
func (s *Service) ApproveAndWait(ctx context.Context, w *ethrpc.WriteClient, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	hash, err := s.Approve(ctx, w, token, spender, amount)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := ethrpc.WaitMined(ctx, w.Backend(), hash); err != nil {
		return hash, fmt.Errorf("approval %s: %w", hash.Hex(), err)
	}
	return hash, nil
}
