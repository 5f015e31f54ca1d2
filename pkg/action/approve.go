package action

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bridge-swap/pkg/chain"
)

// ApproveAction grants the swap contract an allowance over the bridged token
type ApproveAction struct {
	token    common.Address
	spender  common.Address
	amount   *big.Int
	callData []byte
}

// NewApproveAction encodes approve(spender, amount) on token
func NewApproveAction(token, spender common.Address, amount *big.Int) (*ApproveAction, error) {
	data, err := chain.PackApprove(spender, amount)
	if err != nil {
		return nil, err
	}
	return &ApproveAction{
		token:    token,
		spender:  spender,
		amount:   new(big.Int).Set(amount),
		callData: data,
	}, nil
}

func (a *ApproveAction) Kind() Kind { return KindApprove }
func (a *ApproveAction) Target() common.Address { return a.token }
func (a *ApproveAction) CallData() []byte { return common.CopyBytes(a.callData) }
func (a *ApproveAction) Value() *big.Int { return big.NewInt(0) }
func (a *ApproveAction) Spender() common.Address { return a.spender }
func (a *ApproveAction) Amount() *big.Int { return new(big.Int).Set(a.amount) }

// Update re-encodes the approval for amount against the original spender
func (a *ApproveAction) Update(_ context.Context, amount *big.Int) (Patch, error) {
	data, err := chain.PackApprove(a.spender, amount)
	if err != nil {
		return Patch{}, err
	}
	a.amount = new(big.Int).Set(amount)
	a.callData = data
	return Patch{CallData: common.CopyBytes(data)}, nil
}
