package swap

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// DefaultVaultAddress is the Balancer v2 Vault, identical on every chain
var DefaultVaultAddress = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")

// protocolVersion the router asks paths for; v3 needs permit2 signatures
const protocolVersion = 2

// swapKindGivenIn is the Vault's SwapKind.GIVEN_IN
const swapKindGivenIn uint8 = 0

const vaultABIJSON = `[
	{"name":"batchSwap","type":"function","stateMutability":"payable","inputs":[
		{"name":"kind","type":"uint8"},
		{"name":"swaps","type":"tuple[]","components":[
			{"name":"poolId","type":"bytes32"},
			{"name":"assetInIndex","type":"uint256"},
			{"name":"assetOutIndex","type":"uint256"},
			{"name":"amount","type":"uint256"},
			{"name":"userData","type":"bytes"}]},
		{"name":"assets","type":"address[]"},
		{"name":"funds","type":"tuple","components":[
			{"name":"sender","type":"address"},
			{"name":"fromInternalBalance","type":"bool"},
			{"name":"recipient","type":"address"},
			{"name":"toInternalBalance","type":"bool"}]},
		{"name":"limits","type":"int256[]"},
		{"name":"deadline","type":"uint256"}],
	 "outputs":[{"name":"assetDeltas","type":"int256[]"}]},
	{"name":"queryBatchSwap","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"kind","type":"uint8"},
		{"name":"swaps","type":"tuple[]","components":[
			{"name":"poolId","type":"bytes32"},
			{"name":"assetInIndex","type":"uint256"},
			{"name":"assetOutIndex","type":"uint256"},
			{"name":"amount","type":"uint256"},
			{"name":"userData","type":"bytes"}]},
		{"name":"assets","type":"address[]"},
		{"name":"funds","type":"tuple","components":[
			{"name":"sender","type":"address"},
			{"name":"fromInternalBalance","type":"bool"},
			{"name":"recipient","type":"address"},
			{"name":"toInternalBalance","type":"bool"}]}],
	 "outputs":[{"name":"assetDeltas","type":"int256[]"}]}
]`

var vaultABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

type batchSwapStep struct {
	PoolId        [32]byte
	AssetInIndex  *big.Int
	AssetOutIndex *big.Int
	Amount        *big.Int
	UserData      []byte
}

type fundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// ContractCaller executes read-only calls on the destination chain
type ContractCaller interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// BalancerRouter routes swaps through the Balancer API and the v2 Vault
type BalancerRouter struct {
	api    *BalancerAPI
	caller ContractCaller
	vault  common.Address
}

// NewBalancerRouter creates a router that re-queries plans through caller
func NewBalancerRouter(api *BalancerAPI, caller ContractCaller, vault common.Address) *BalancerRouter {
	if vault == (common.Address{}) {
		vault = DefaultVaultAddress
	}
	return &BalancerRouter{api: api, caller: caller, vault: vault}
}

// FetchPaths asks the Balancer smart order router for v2 paths
func (r *BalancerRouter) FetchPaths(ctx context.Context, req PathRequest) ([]Path, error) {
	return r.api.SwapPaths(ctx, req.ChainID, req.TokenIn, req.TokenOut.Address, req.Amount, protocolVersion)
}

// Query simulates the plan with Vault.queryBatchSwap
func (r *BalancerRouter) Query(ctx context.Context, plan *Plan) (*QueryOutput, error) {
	steps, assets, err := batchSteps(plan)
	if err != nil {
		return nil, err
	}

	data, err := vaultABI.Pack("queryBatchSwap", swapKindGivenIn, steps, assets, fundManagement{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack queryBatchSwap")
	}

	vault := r.vault
	res, err := r.caller.Call(ctx, ethereum.CallMsg{To: &vault, Data: data})
	if err != nil {
		return nil, errors.Wrap(err, "queryBatchSwap reverted")
	}

	out, err := vaultABI.Unpack("queryBatchSwap", res)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack queryBatchSwap result")
	}
	deltas, ok := out[0].([]*big.Int)
	if !ok || len(deltas) != len(assets) {
		return nil, errors.New("unexpected queryBatchSwap result")
	}

	// the vault reports tokens leaving it as negative deltas
	expected := new(big.Int).Neg(deltas[indexOf(assets, plan.TokenOut)])
	if expected.Sign() <= 0 {
		return nil, ErrNoPath
	}
	return &QueryOutput{ExpectedAmountOut: expected}, nil
}

// BuildCall encodes Vault.batchSwap with slippage-adjusted limits
func (r *BalancerRouter) BuildCall(_ context.Context, in BuildInput) (*Call, error) {
	if in.Plan.ProtocolVersion != protocolVersion {
		return nil, errors.Errorf("protocol version %d is not supported", in.Plan.ProtocolVersion)
	}
	if in.Sender == nil || in.Recipient == nil {
		return nil, errors.New("sender and recipient are required for vault swaps")
	}

	steps, assets, err := batchSteps(in.Plan)
	if err != nil {
		return nil, err
	}

	minOut := in.Slippage.MinAmountOut(in.Query.ExpectedAmountOut)
	limits := make([]*big.Int, len(assets))
	for i := range limits {
		limits[i] = new(big.Int)
	}
	limits[indexOf(assets, in.Plan.TokenIn)].Set(in.Plan.InputAmount)
	limits[indexOf(assets, in.Plan.TokenOut)].Neg(minOut)

	funds := fundManagement{Sender: *in.Sender, Recipient: *in.Recipient}
	data, err := vaultABI.Pack("batchSwap", swapKindGivenIn, steps, assets, funds, limits, in.Deadline)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack batchSwap")
	}

	return &Call{
		Target:            r.vault,
		CallData:          data,
		Value:             big.NewInt(0),
		MinAmountOut:      minOut,
		ExpectedAmountOut: new(big.Int).Set(in.Query.ExpectedAmountOut),
	}, nil
}

// batchSteps flattens a plan into vault swap steps over a shared asset list.
// Only the first hop of each path carries an amount; later hops consume the
// previous hop's output.
func batchSteps(plan *Plan) ([]batchSwapStep, []common.Address, error) {
	var assets []common.Address
	var steps []batchSwapStep

	for _, p := range plan.Paths {
		for _, tok := range p.Tokens {
			if indexOf(assets, tok) < 0 {
				assets = append(assets, tok)
			}
		}
		for i, pool := range p.Pools {
			amount := new(big.Int)
			if i == 0 {
				amount.Set(p.InputAmount)
			}
			steps = append(steps, batchSwapStep{
				PoolId:        pool,
				AssetInIndex:  big.NewInt(int64(indexOf(assets, p.Tokens[i]))),
				AssetOutIndex: big.NewInt(int64(indexOf(assets, p.Tokens[i+1]))),
				Amount:        amount,
				UserData:      []byte{},
			})
		}
	}

	if len(steps) == 0 {
		return nil, nil, ErrNoPath
	}
	return steps, assets, nil
}

func indexOf(assets []common.Address, a common.Address) int {
	for i, x := range assets {
		if x == a {
			return i
		}
	}
	return -1
}
