package swap

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
)

const bpsDenominator = 10_000

// Slippage is a tolerance expressed in basis points
type Slippage uint16

// SlippageFromPercent converts a percentage such as 1 or 0.5 into basis points
func SlippageFromPercent(pct float64) (Slippage, error) {
	if pct <= 0 || pct >= 100 || math.IsNaN(pct) {
		return 0, errors.Errorf("slippage must be between 0 and 100 percent, got %v", pct)
	}
	return Slippage(math.Round(pct * 100)), nil
}

// Percent returns the tolerance as a percentage
func (s Slippage) Percent() float64 {
	return float64(s) / 100
}

// MinAmountOut applies the tolerance to an expected output, rounding down
func (s Slippage) MinAmountOut(expected *big.Int) *big.Int {
	out := new(big.Int).Mul(expected, big.NewInt(int64(bpsDenominator-int(s))))
	return out.Quo(out, big.NewInt(bpsDenominator))
}
