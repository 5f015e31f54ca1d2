package action

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"bridge-swap/pkg/swap"
)

// ErrSwapTargetChanged is matched by every SwapTargetChangedError
var ErrSwapTargetChanged = errors.New("swap target changed")

// SwapTargetChangedError is returned when the router resolves a different
// swap contract at fill time than the one the approval was granted to
type SwapTargetChangedError struct {
	Captured common.Address
	Resolved common.Address
}

func (e *SwapTargetChangedError) Error() string {
	return fmt.Sprintf("swap contract address changed: approved %s, resolved %s", e.Captured.Hex(), e.Resolved.Hex())
}

// Is makes errors.Is(err, ErrSwapTargetChanged) hold
func (e *SwapTargetChangedError) Is(target error) bool { return target == ErrSwapTargetChanged }

// CallGenerator produces swap calls for an amount
type CallGenerator interface {
	Generate(ctx context.Context, req swap.Request) (*swap.Call, error)
}

// SwapAction performs an exact-input swap of the delivered amount
type SwapAction struct {
	generator CallGenerator
	request   swap.Request
	target    common.Address
	call      *swap.Call
}

// NewSwapAction captures the initial estimate; its target is pinned for
// every later update
func NewSwapAction(generator CallGenerator, request swap.Request, initial *swap.Call) *SwapAction {
	return &SwapAction{
		generator: generator,
		request:   request,
		target:    initial.Target,
		call:      initial,
	}
}

func (a *SwapAction) Kind() Kind { return KindSwap }
func (a *SwapAction) Target() common.Address { return a.target }
func (a *SwapAction) CallData() []byte { return common.CopyBytes(a.call.CallData) }

func (a *SwapAction) Value() *big.Int {
	if a.call.Value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.call.Value)
}

// LastCall returns the most recent swap call, initial or updated
func (a *SwapAction) LastCall() *swap.Call { return a.call }

// Update regenerates the swap for amount. A different target fails with
// ErrSwapTargetChanged because the approval was granted to the captured one.
func (a *SwapAction) Update(ctx context.Context, amount *big.Int) (Patch, error) {
	call, err := a.generator.Generate(ctx, a.request.WithAmount(amount))
	if err != nil {
		return Patch{}, err
	}
	if call.Target != a.target {
		return Patch{}, &SwapTargetChangedError{Captured: a.target, Resolved: call.Target}
	}

	a.call = call
	p := Patch{CallData: common.CopyBytes(call.CallData)}
	if call.Value != nil {
		p.Value = new(big.Int).Set(call.Value)
	}
	return p, nil
}
