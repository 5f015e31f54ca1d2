package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"25", "25"},
		{"2.5 USDC", "2.5"},
		{"swap 10 usdc", "10"},
		{".5", ".5"},
		{"  7  ", "7"},
		{"3 USDbC", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amount, err := ParseAmount(tt.input, "USDC")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, amount)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	tests := []string{"", "ten", "1 SOL to USDC", "-5", "1,5"}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAmount(input, "USDC")
			assert.Error(t, err)
		})
	}
}

func TestParseAmount_WrongToken(t *testing.T) {
	_, err := ParseAmount("1 WETH", "USDC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route input token is USDC")
}

func TestNormalizeTokenSymbol(t *testing.T) {
	assert.Equal(t, "USDC", NormalizeTokenSymbol("usdc.e"))
	assert.Equal(t, "WETH", NormalizeTokenSymbol(" weth "))
}
