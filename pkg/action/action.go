// Package action models the destination-chain calls delivered with a bridge
// deposit. Each action can be recomputed for the amount actually delivered.
package action

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the semantic role of an action
type Kind int

const (
	KindApprove Kind = iota
	KindSwap
)

func (k Kind) String() string {
	switch k {
	case KindApprove:
		return "approve"
	case KindSwap:
		return "swap"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Patch is the result of recomputing an action for a new amount.
// It carries no target or kind, so an update cannot change what the action is.
type Patch struct {
	CallData []byte
	// Value is nil when the native value is unchanged
	Value *big.Int
}

// Action is one destination-chain call in a CrossChainMessage
type Action interface {
	Kind() Kind
	Target() common.Address
	CallData() []byte
	Value() *big.Int

	// Update recomputes the call for amount. On error the returned patch is
	// empty and must not be applied.
	Update(ctx context.Context, amount *big.Int) (Patch, error)
}

// Call is a fully resolved action ready to be encoded
type Call struct {
	Target   common.Address
	CallData []byte
	Value    *big.Int
}

// Current returns the call an action would make without any update
func Current(a Action) Call {
	return Call{Target: a.Target(), CallData: a.CallData(), Value: a.Value()}
}

// Apply folds a patch into the action's current call
func Apply(a Action, p Patch) Call {
	call := Current(a)
	if p.CallData != nil {
		call.CallData = p.CallData
	}
	if p.Value != nil {
		call.Value = new(big.Int).Set(p.Value)
	}
	return call
}
