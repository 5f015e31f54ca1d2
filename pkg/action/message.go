package action

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// handlerInstructions mirrors the delivery handler's
// Instructions{Call[] calls; address fallbackRecipient}
type handlerInstructions struct {
	Calls             []handlerCall
	FallbackRecipient common.Address
}

type handlerCall struct {
	Target   common.Address
	CallData []byte
	Value    *big.Int
}

var instructionsArgs = func() abi.Arguments {
	typ, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "calls", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "target", Type: "address"},
			{Name: "callData", Type: "bytes"},
			{Name: "value", Type: "uint256"},
		}},
		{Name: "fallbackRecipient", Type: "address"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: typ}}
}()

// CrossChainMessage is the ordered action list executed by the destination
// handler, plus the address receiving anything the actions do not consume
type CrossChainMessage struct {
	actions           []Action
	fallbackRecipient common.Address
}

// NewCrossChainMessage validates and builds a message
func NewCrossChainMessage(actions []Action, fallbackRecipient common.Address) (*CrossChainMessage, error) {
	if len(actions) == 0 {
		return nil, errors.New("cross-chain message needs at least one action")
	}
	if fallbackRecipient == (common.Address{}) {
		return nil, errors.New("fallback recipient is required")
	}
	return &CrossChainMessage{
		actions:           append([]Action(nil), actions...),
		fallbackRecipient: fallbackRecipient,
	}, nil
}

// Actions returns the actions in execution order
func (m *CrossChainMessage) Actions() []Action {
	return append([]Action(nil), m.actions...)
}

// FallbackRecipient returns who receives leftover or unswapped funds
func (m *CrossChainMessage) FallbackRecipient() common.Address {
	return m.fallbackRecipient
}

// Calls returns the current calls without updating any action
func (m *CrossChainMessage) Calls() []Call {
	calls := make([]Call, len(m.actions))
	for i, a := range m.actions {
		calls[i] = Current(a)
	}
	return calls
}

// Resolve updates every action, in order, for the delivered amount.
// The first failing update aborts resolution.
func (m *CrossChainMessage) Resolve(ctx context.Context, amount *big.Int) ([]Call, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("delivered amount must be greater than 0")
	}

	calls := make([]Call, len(m.actions))
	for i, a := range m.actions {
		patch, err := a.Update(ctx, amount)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to update %s action", a.Kind())
		}
		calls[i] = Apply(a, patch)
	}
	return calls, nil
}

// Encode ABI-encodes calls as handler instructions
func (m *CrossChainMessage) Encode(calls []Call) ([]byte, error) {
	in := handlerInstructions{FallbackRecipient: m.fallbackRecipient}
	for _, c := range calls {
		value := c.Value
		if value == nil {
			value = big.NewInt(0)
		}
		in.Calls = append(in.Calls, handlerCall{Target: c.Target, CallData: c.CallData, Value: value})
	}

	data, err := instructionsArgs.Pack(in)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode handler instructions")
	}
	return data, nil
}

// EncodeCurrent encodes the calls as they stand, without updating
func (m *CrossChainMessage) EncodeCurrent() ([]byte, error) {
	return m.Encode(m.Calls())
}

// DecodeInstructions reverses Encode
func DecodeInstructions(data []byte) ([]Call, common.Address, error) {
	values, err := instructionsArgs.Unpack(data)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(err, "failed to decode handler instructions")
	}

	var in handlerInstructions
	if err := instructionsArgs.Copy(&in, values); err != nil {
		return nil, common.Address{}, errors.Wrap(err, "failed to copy handler instructions")
	}

	calls := make([]Call, len(in.Calls))
	for i, c := range in.Calls {
		calls[i] = Call{Target: c.Target, CallData: c.CallData, Value: c.Value}
	}
	return calls, in.FallbackRecipient, nil
}
