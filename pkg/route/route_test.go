package route

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() Params {
	return Params{
		Origin:      Chain{ID: 8453, Name: "base", ExplorerURL: "https://basescan.org/"},
		Destination: Chain{ID: 42161, Name: "arbitrum"},
		InputToken: Token{
			ChainID:  8453,
			Address:  common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			Decimals: 6,
			Symbol:   "USDC",
		},
		InputAmount: big.NewInt(10_000_000),
		SwapTokenIn: Token{
			ChainID:  42161,
			Address:  common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
			Decimals: 6,
			Symbol:   "USDC",
		},
		SwapTokenOut: Token{
			ChainID:  42161,
			Address:  common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
			Decimals: 18,
			Symbol:   "WETH",
		},
		Handler: common.HexToAddress("0x924a9f036260ddd5808007e1aa95f08ed08aa569"),
	}
}

func TestNew(t *testing.T) {
	d, err := New(validParams())
	require.NoError(t, err)

	assert.Equal(t, int64(8453), d.Origin().ID)
	assert.Equal(t, "10", d.FormattedInputAmount())
	assert.Equal(t, "https://basescan.org/tx/0xabc", d.Origin().TxURL("0xabc"))
	assert.Equal(t, "0xabc", d.Destination().TxURL("0xabc"))
}

func TestNew_InputAmountIsCopied(t *testing.T) {
	p := validParams()
	d, err := New(p)
	require.NoError(t, err)

	p.InputAmount.SetInt64(1)
	got := d.InputAmount()
	got.SetInt64(2)

	assert.Equal(t, int64(10_000_000), d.InputAmount().Int64())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		errMsg string
	}{
		{"zero amount", func(p *Params) { p.InputAmount = big.NewInt(0) }, "input amount"},
		{"nil amount", func(p *Params) { p.InputAmount = nil }, "input amount"},
		{"same chain", func(p *Params) { p.Destination.ID = p.Origin.ID }, "must differ"},
		{"input token on wrong chain", func(p *Params) { p.InputToken.ChainID = 1 }, "not on origin chain"},
		{"swap token on wrong chain", func(p *Params) { p.SwapTokenOut.ChainID = 1 }, "destination chain"},
		{"same swap tokens", func(p *Params) { p.SwapTokenOut.Address = p.SwapTokenIn.Address }, "must differ"},
		{"missing handler", func(p *Params) { p.Handler = common.Address{} }, "handler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := New(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
