package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"block-bazaar/internal/ethrpc"
)

// State is the stage a swap flow is in.
type State string

// Flow states. Terminal states are Succeeded, Reverted and Failed; a
// flow never retries on its own.
const (
	StateIdle      State = "idle"
	StateQuoting   State = "quoting"
	StateApproving State = "approving"
	StateSwapping  State = "swapping"
	StateSucceeded State = "succeeded"
	StateReverted  State = "reverted"
	StateFailed    State = "failed"
)

// ErrFlowConsumed is returned when Run is called on a flow that
// already ran. Each flow executes exactly once.
var ErrFlowConsumed = errors.New("swap: flow already ran")

// Flow drives one swap from quote to confirmation through explicit
// states. A failed or reverted flow stays failed; the caller decides
// whether to start a fresh one.
type Flow struct {
	svc     *Service
	w       *ethrpc.WriteClient
	onState func(State)

	mu     sync.Mutex
	state  State
	quote  *Quote
	txHash common.Hash
	err    error
}

// NewFlow builds a flow. onState, if non-nil, observes every state
// transition.
func NewFlow(svc *Service, w *ethrpc.WriteClient, onState func(State)) *Flow {
	if onState == nil {
		onState = func(State) {}
	}
	return &Flow{svc: svc, w: w, onState: onState, state: StateIdle}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Quote returns the quote obtained by Run, if any.
func (f *Flow) Quote() *Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote
}

// TxHash returns the swap transaction hash, if one was submitted.
func (f *Flow) TxHash() common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txHash
}

// Err returns the error that terminated the flow, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) transition(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.onState(s)
}

// fail records the terminal state for err: reverted when the chain
// rejected the execution, failed for everything else.
func (f *Flow) fail(err error) error {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()

	if ethrpc.IsRevert(err) {
		f.transition(StateReverted)
	} else {
		f.transition(StateFailed)
	}
	return err
}

// Run executes the swap: quote, approve when needed, swap, confirm.
// It can be called once per flow.
func (f *Flow) Run(ctx context.Context, path []common.Address, amountIn *big.Int, slippagePct float64) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return ErrFlowConsumed
	}
	f.mu.Unlock()

	f.transition(StateQuoting)
	quote, err := f.svc.GetQuote(ctx, path, amountIn)
	if err != nil {
		return f.fail(fmt.Errorf("quote: %w", err))
	}
	f.mu.Lock()
	f.quote = quote
	f.mu.Unlock()

	// Approving is entered only when the router's allowance does not
	// already cover the amount; a pre-approved swap goes straight from
	// quoting to swapping.
	allowance, err := f.svc.CheckAllowance(ctx, path[0], f.w.From())
	if err != nil {
		return f.fail(fmt.Errorf("read allowance: %w", err))
	}
	if allowance.Cmp(amountIn) < 0 {
		f.transition(StateApproving)
		if _, err := f.svc.Approve(ctx, f.w, path[0], amountIn); err != nil {
			return f.fail(fmt.Errorf("approve: %w", err))
		}
	}

	f.transition(StateSwapping)
	minOut := CalculateMinAmountOut(quote.AmountOut, slippagePct)
	hash, err := f.svc.ExecuteSwap(ctx, f.w, path, amountIn, minOut)
	f.mu.Lock()
	f.txHash = hash
	f.mu.Unlock()
	if err != nil {
		return f.fail(fmt.Errorf("swap: %w", err))
	}

	f.transition(StateSucceeded)
	return nil
}
