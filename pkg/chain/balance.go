package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"bridge-swap/pkg/route"
)

// ErrInsufficientBalance is matched by every InsufficientBalanceError
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceReader reads ERC20 balances
type BalanceReader interface {
	TokenBalance(ctx context.Context, holder, token common.Address) (*big.Int, error)
}

// InsufficientBalanceError reports a failed preflight with both amounts
type InsufficientBalanceError struct {
	Token     route.Token
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance. Required: %s %s, Available: %s %s",
		route.FormatUnits(e.Required, e.Token.Decimals), e.Token,
		route.FormatUnits(e.Available, e.Token.Decimals), e.Token)
}

// Is makes errors.Is(err, ErrInsufficientBalance) hold
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// CheckBalance verifies holder owns at least required units of token and
// returns the available balance. It performs a single read.
func CheckBalance(ctx context.Context, reader BalanceReader, holder common.Address, token route.Token, required *big.Int) (*big.Int, error) {
	if required == nil || required.Sign() <= 0 {
		return nil, errors.New("required amount must be greater than 0")
	}

	balance, err := reader.TokenBalance(ctx, holder, token.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get token balance")
	}

	if balance.Cmp(required) < 0 {
		return balance, &InsufficientBalanceError{
			Token:     token,
			Required:  new(big.Int).Set(required),
			Available: new(big.Int).Set(balance),
		}
	}
	return balance, nil
}
