package swap

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"bridge-swap/pkg/client"
	"bridge-swap/pkg/route"
)

// DefaultBalancerAPIURL is the public Balancer v3 API
const DefaultBalancerAPIURL = "https://api-v3.balancer.fi/"

const sorSwapPathsQuery = `query SorSwapPaths($chain: GqlChain!, $swapType: GqlSorSwapType!, $swapAmount: AmountHumanReadable!, $tokenIn: String!, $tokenOut: String!, $useProtocolVersion: Int) {
  sorGetSwapPaths(chain: $chain, swapType: $swapType, swapAmount: $swapAmount, tokenIn: $tokenIn, tokenOut: $tokenOut, useProtocolVersion: $useProtocolVersion) {
    paths {
      inputAmountRaw
      outputAmountRaw
      pools
      protocolVersion
      tokens {
        address
        decimals
      }
    }
  }
}`

// gqlChains maps chain ids to the API's chain enum
var gqlChains = map[int64]string{
	1:     "MAINNET",
	10:    "OPTIMISM",
	100:   "GNOSIS",
	137:   "POLYGON",
	8453:  "BASE",
	42161: "ARBITRUM",
	43114: "AVALANCHE",
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type sorPathsResponse struct {
	Data struct {
		SorGetSwapPaths struct {
			Paths []struct {
				InputAmountRaw  string   `json:"inputAmountRaw"`
				OutputAmountRaw string   `json:"outputAmountRaw"`
				Pools           []string `json:"pools"`
				ProtocolVersion int      `json:"protocolVersion"`
				Tokens          []struct {
					Address  string `json:"address"`
					Decimals int    `json:"decimals"`
				} `json:"tokens"`
			} `json:"paths"`
		} `json:"sorGetSwapPaths"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// BalancerAPI fetches smart-order-router paths from the Balancer API
type BalancerAPI struct {
	api *client.APIClient
}

// NewBalancerAPI wraps an API client pointed at the GraphQL endpoint
func NewBalancerAPI(api *client.APIClient) *BalancerAPI {
	return &BalancerAPI{api: api}
}

// SwapPaths returns exact-input paths for amount of tokenIn
func (b *BalancerAPI) SwapPaths(ctx context.Context, chainID int64, tokenIn route.Token, tokenOut common.Address, amount *big.Int, protocolVersion int) ([]Path, error) {
	chain, ok := gqlChains[chainID]
	if !ok {
		return nil, errors.Errorf("chain %d is not supported by the Balancer API", chainID)
	}

	req := graphQLRequest{
		Query: sorSwapPathsQuery,
		Variables: map[string]interface{}{
			"chain":              chain,
			"swapType":           "EXACT_IN",
			"swapAmount":         route.FormatUnits(amount, tokenIn.Decimals),
			"tokenIn":            strings.ToLower(tokenIn.Address.Hex()),
			"tokenOut":           strings.ToLower(tokenOut.Hex()),
			"useProtocolVersion": protocolVersion,
		},
	}

	var resp sorPathsResponse
	if err := b.api.Post(ctx, "", req, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch swap paths")
	}
	if len(resp.Errors) > 0 {
		return nil, errors.Errorf("balancer API error: %s", resp.Errors[0].Message)
	}

	raw := resp.Data.SorGetSwapPaths.Paths
	if len(raw) == 0 {
		return nil, ErrNoPath
	}

	paths := make([]Path, 0, len(raw))
	for i, p := range raw {
		in, ok := new(big.Int).SetString(p.InputAmountRaw, 10)
		if !ok {
			return nil, errors.Errorf("path %d: invalid input amount %q", i, p.InputAmountRaw)
		}
		out, ok := new(big.Int).SetString(p.OutputAmountRaw, 10)
		if !ok {
			return nil, errors.Errorf("path %d: invalid output amount %q", i, p.OutputAmountRaw)
		}

		path := Path{
			InputAmount:     in,
			OutputAmount:    out,
			ProtocolVersion: p.ProtocolVersion,
		}
		for _, pool := range p.Pools {
			path.Pools = append(path.Pools, common.HexToHash(pool))
		}
		for _, tok := range p.Tokens {
			path.Tokens = append(path.Tokens, common.HexToAddress(tok.Address))
		}
		paths = append(paths, path)
	}

	return paths, nil
}
