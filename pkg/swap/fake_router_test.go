package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testTokenIn  = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	testTokenOut = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	testPool     = common.HexToHash("0x64541216bafffeec8ea535bb71fbc927831d0595000100000000000000000002")
)

// linearRouter prices every unit of input at rate units of output
type linearRouter struct {
	rate        int64
	target      common.Address
	pathErr     error
	queryErr    error
	protocol    int
	pathCalls   int
	lastBuild   BuildInput
	queryResult *big.Int
}

func (r *linearRouter) FetchPaths(_ context.Context, req PathRequest) ([]Path, error) {
	r.pathCalls++
	if r.pathErr != nil {
		return nil, r.pathErr
	}
	protocol := r.protocol
	if protocol == 0 {
		protocol = 2
	}
	return []Path{{
		Pools:           []common.Hash{testPool},
		Tokens:          []common.Address{req.TokenIn.Address, req.TokenOut.Address},
		InputAmount:     new(big.Int).Set(req.Amount),
		OutputAmount:    new(big.Int).Mul(req.Amount, big.NewInt(r.rate)),
		ProtocolVersion: protocol,
	}}, nil
}

func (r *linearRouter) Query(_ context.Context, plan *Plan) (*QueryOutput, error) {
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	if r.queryResult != nil {
		return &QueryOutput{ExpectedAmountOut: r.queryResult}, nil
	}
	return &QueryOutput{ExpectedAmountOut: new(big.Int).Mul(plan.InputAmount, big.NewInt(r.rate))}, nil
}

func (r *linearRouter) BuildCall(_ context.Context, in BuildInput) (*Call, error) {
	r.lastBuild = in
	return &Call{
		Target:            r.target,
		CallData:          append([]byte{0xde, 0xad}, in.Plan.InputAmount.Bytes()...),
		Value:             big.NewInt(0),
		MinAmountOut:      in.Slippage.MinAmountOut(in.Query.ExpectedAmountOut),
		ExpectedAmountOut: in.Query.ExpectedAmountOut,
	}, nil
}
