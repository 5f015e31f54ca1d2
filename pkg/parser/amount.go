package parser

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var amountPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)(?:\s+([A-Z0-9]+))?$`)

// ParseAmount parses an amount override such as "25", "2.5 USDC" or
// "swap 25 usdc". When a symbol is given it must match the input token.
func ParseAmount(input, inputSymbol string) (string, error) {
	input = strings.TrimSpace(strings.ToUpper(input))
	input = strings.TrimPrefix(input, "SWAP ")

	matches := amountPattern.FindStringSubmatch(input)
	if matches == nil {
		return "", errors.Errorf("invalid amount %q. Expected '<amount> [token]' (e.g. '25 USDC')", input)
	}

	symbol := matches[2]
	if symbol != "" && inputSymbol != "" && NormalizeTokenSymbol(symbol) != NormalizeTokenSymbol(inputSymbol) {
		return "", errors.Errorf("route input token is %s, not %s", strings.ToUpper(inputSymbol), symbol)
	}
	return matches[1], nil
}

// NormalizeTokenSymbol maps bridged variants onto their canonical symbol
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"USDC.E": "USDC",
		"USDBC":  "USDC",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}
