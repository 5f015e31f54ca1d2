package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-swap/pkg/route"
)

type fakeBalanceReader struct {
	balance *big.Int
	err     error
	calls   int
}

func (f *fakeBalanceReader) TokenBalance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	f.calls++
	return f.balance, f.err
}

var usdc = route.Token{
	ChainID:  8453,
	Address:  common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	Decimals: 6,
	Symbol:   "USDC",
}

func TestCheckBalance(t *testing.T) {
	holder := common.HexToAddress("0x1")
	required := big.NewInt(10_000_000)

	tests := []struct {
		name    string
		balance int64
		ok      bool
	}{
		{"exact balance", 10_000_000, true},
		{"more than enough", 25_000_000, true},
		{"one unit short", 9_999_999, false},
		{"empty", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeBalanceReader{balance: big.NewInt(tt.balance)}
			available, err := CheckBalance(context.Background(), reader, holder, usdc, required)
			assert.Equal(t, 1, reader.calls)
			assert.Equal(t, tt.balance, available.Int64())

			if tt.ok {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientBalance))

			var balanceErr *InsufficientBalanceError
			require.True(t, errors.As(err, &balanceErr))
			assert.Equal(t, required.String(), balanceErr.Required.String())
			assert.Equal(t, tt.balance, balanceErr.Available.Int64())
		})
	}
}

func TestCheckBalance_MessageUsesHumanUnits(t *testing.T) {
	reader := &fakeBalanceReader{balance: big.NewInt(2_500_000)}
	_, err := CheckBalance(context.Background(), reader, common.HexToAddress("0x1"), usdc, big.NewInt(10_000_000))
	require.Error(t, err)
	assert.Equal(t, "insufficient balance. Required: 10 USDC, Available: 2.5 USDC", err.Error())
}

func TestCheckBalance_ReadError(t *testing.T) {
	reader := &fakeBalanceReader{err: errors.New("rpc down")}
	_, err := CheckBalance(context.Background(), reader, common.HexToAddress("0x1"), usdc, big.NewInt(1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientBalance))
	assert.Contains(t, err.Error(), "rpc down")
}

func TestCheckBalance_RejectsNonPositiveAmount(t *testing.T) {
	reader := &fakeBalanceReader{balance: big.NewInt(1)}
	_, err := CheckBalance(context.Background(), reader, common.HexToAddress("0x1"), usdc, big.NewInt(0))
	require.Error(t, err)
	assert.Equal(t, 0, reader.calls)
}
