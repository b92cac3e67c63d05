// Package swap quotes and executes Uniswap V2 token swaps, used to
// exchange the stable token for store tokens.
package swap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/contracts"
	"block-bazaar/internal/ethrpc"
	"block-bazaar/internal/token"
)

// DefaultDeadline is how far in the future swap deadlines are set.
const DefaultDeadline = 20 * time.Minute

// FallbackPriceImpact is reported when the probe quote used to
// estimate impact cannot be obtained.
const FallbackPriceImpact = 0.5

// ErrEmptyQuote means the router returned no usable amounts, usually
// because the pair has no liquidity.
var ErrEmptyQuote = errors.New("swap: router returned empty quote")

// Quote is the router's answer for one prospective swap.
type Quote struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Path      []common.Address

	// PriceImpactPct estimates how much the executed rate deviates
	// from the spot rate, in percent.
	PriceImpactPct float64
}

// Service wraps one Uniswap V2 router deployment.
type Service struct {
	backend ethrpc.Backend
	router  common.Address
	tokens  *token.Service
	logger  *log.Logger
	now     func() time.Time
}

// NewService builds a swap service bound to a router address.
func NewService(backend ethrpc.Backend, router common.Address, tokens *token.Service, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		backend: backend,
		router:  router,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// Router returns the router contract address.
func (s *Service) Router() common.Address {
	return s.router
}

// GetQuote asks the router how much the path yields for amountIn and
// estimates the price impact. The impact estimate is best-effort: a
// failing probe falls back to a fixed figure instead of failing the
// quote.
func (s *Service) GetQuote(ctx context.Context, path []common.Address, amountIn *big.Int) (*Quote, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("swap: path needs at least 2 tokens, got %d", len(path))
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("swap: amount in must be positive")
	}

	amounts, err := s.amountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("quote %s in: %w", amountIn, err)
	}
	amountOut := amounts[len(amounts)-1]
	if amountOut.Sign() == 0 {
		return nil, ErrEmptyQuote
	}

	return &Quote{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		Path:           path,
		PriceImpactPct: s.estimateImpact(ctx, path, amountIn, amountOut),
	}, nil
}

func (s *Service) amountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := ethrpc.Call(ctx, s.backend, s.router, contracts.Router, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts := out[0].([]*big.Int)
	if len(amounts) == 0 {
		return nil, ErrEmptyQuote
	}
	return amounts, nil
}

// estimateImpact compares the executed rate against the spot rate
// observed with a probe of 1/1000 of the amount. Falls back to a
// fixed estimate when the probe fails.
func (s *Service) estimateImpact(ctx context.Context, path []common.Address, amountIn, amountOut *big.Int) float64 {
	probeIn := new(big.Int).Div(amountIn, big.NewInt(1000))
	if probeIn.Sign() == 0 {
		return FallbackPriceImpact
	}

	probeAmounts, err := s.amountsOut(ctx, probeIn, path)
	if err != nil {
		s.logger.Printf("price impact probe failed: %v", err)
		return FallbackPriceImpact
	}
	probeOut := probeAmounts[len(probeAmounts)-1]
	if probeOut.Sign() == 0 {
		return FallbackPriceImpact
	}

	spotRate := ratio(probeOut, probeIn)
	execRate := ratio(amountOut, amountIn)
	if spotRate == 0 {
		return FallbackPriceImpact
	}

	impact := (1 - execRate/spotRate) * 100
	if impact < 0 {
		impact = 0
	}
	return impact
}

func ratio(num, den *big.Int) float64 {
	n, _ := new(big.Float).SetInt(num).Float64()
	d, _ := new(big.Float).SetInt(den).Float64()
	if d == 0 {
		return 0
	}
	return n / d
}

// CalculateMinAmountOut applies slippage tolerance to a quoted
// amount. The tolerance is truncated to whole basis points, so 0.5%
// on 1000 yields 995.
func CalculateMinAmountOut(amountOut *big.Int, slippagePct float64) *big.Int {
	bps := int64(math.Floor(slippagePct * 100))
	if bps < 0 {
		bps = 0
	}
	cut := new(big.Int).Mul(amountOut, big.NewInt(bps))
	cut.Div(cut, big.NewInt(10_000))
	return new(big.Int).Sub(amountOut, cut)
}

// Deadline returns the unix timestamp swaps submitted now must
// execute by.
func (s *Service) Deadline() *big.Int {
	return big.NewInt(s.now().Add(DefaultDeadline).Unix())
}

// CheckAllowance reads the router's allowance for owner on the input
// token.
func (s *Service) CheckAllowance(ctx context.Context, tokenIn, owner common.Address) (*big.Int, error) {
	return s.tokens.Allowance(ctx, tokenIn, owner, s.router)
}

// Approve grants the router twice the requested amount, so the next
// swap of similar size skips the approval round trip. Blocks until
// mined.
func (s *Service) Approve(ctx context.Context, w *ethrpc.WriteClient, tokenIn common.Address, amount *big.Int) (common.Hash, error) {
	granted := new(big.Int).Mul(amount, big.NewInt(2))
	return s.tokens.ApproveAndWait(ctx, w, tokenIn, s.router, granted)
}

// EnsureAllowance approves the router only when the current
// allowance does not cover amount. Returns true when an approval
// transaction was sent.
func (s *Service) EnsureAllowance(ctx context.Context, w *ethrpc.WriteClient, tokenIn common.Address, amount *big.Int) (bool, error) {
	allowance, err := s.CheckAllowance(ctx, tokenIn, w.From())
	if err != nil {
		return false, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return false, nil
	}
	if _, err := s.Approve(ctx, w, tokenIn, amount); err != nil {
		return true, err
	}
	return true, nil
}

// ExecuteSwap submits swapExactTokensForTokens and waits for it to
// mine. minAmountOut should come from CalculateMinAmountOut.
func (s *Service) ExecuteSwap(ctx context.Context, w *ethrpc.WriteClient, path []common.Address, amountIn, minAmountOut *big.Int) (common.Hash, error) {
	data, err := contracts.Router.Pack("swapExactTokensForTokens",
		amountIn, minAmountOut, path, w.From(), s.Deadline())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack swap: %w", err)
	}

	hash, err := w.Submit(ctx, s.router, data)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := ethrpc.WaitMined(ctx, s.backend, hash); err != nil {
		return hash, err
	}

	s.logger.Printf("swapped %s via %s (tx %s)", amountIn, s.router.Hex(), hash.Hex())
	return hash, nil
}
