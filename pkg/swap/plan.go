package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Plan is a validated set of paths for one exact-input swap
type Plan struct {
	ChainID         int64
	TokenIn         common.Address
	TokenOut        common.Address
	Paths           []Path
	ProtocolVersion int
	InputAmount     *big.Int
	OutputAmount    *big.Int
}

// NewPlan checks that every path starts at tokenIn, ends at tokenOut and
// uses the same protocol version, then sums the path amounts
func NewPlan(chainID int64, tokenIn, tokenOut common.Address, paths []Path) (*Plan, error) {
	if len(paths) == 0 {
		return nil, ErrNoPath
	}

	plan := &Plan{
		ChainID:         chainID,
		TokenIn:         tokenIn,
		TokenOut:        tokenOut,
		Paths:           paths,
		ProtocolVersion: paths[0].ProtocolVersion,
		InputAmount:     new(big.Int),
		OutputAmount:    new(big.Int),
	}

	for i, p := range paths {
		if len(p.Pools) == 0 || len(p.Tokens) != len(p.Pools)+1 {
			return nil, errors.Errorf("path %d: %d pools do not connect %d tokens", i, len(p.Pools), len(p.Tokens))
		}
		if p.Tokens[0] != tokenIn || p.Tokens[len(p.Tokens)-1] != tokenOut {
			return nil, errors.Errorf("path %d does not connect %s to %s", i, tokenIn.Hex(), tokenOut.Hex())
		}
		if p.ProtocolVersion != plan.ProtocolVersion {
			return nil, errors.Errorf("path %d uses protocol version %d, expected %d", i, p.ProtocolVersion, plan.ProtocolVersion)
		}
		if p.InputAmount == nil || p.InputAmount.Sign() <= 0 {
			return nil, errors.Errorf("path %d has no input amount", i)
		}
		plan.InputAmount.Add(plan.InputAmount, p.InputAmount)
		if p.OutputAmount != nil {
			plan.OutputAmount.Add(plan.OutputAmount, p.OutputAmount)
		}
	}

	return plan, nil
}

// FixesSenderAndRecipient reports whether the protocol always uses the
// calling contract as sender and recipient
func (p *Plan) FixesSenderAndRecipient() bool {
	return p.ProtocolVersion >= 3
}
