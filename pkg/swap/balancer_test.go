package swap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWBTC = common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f")

type fakeCaller struct {
	result []byte
	msg    ethereum.CallMsg
}

func (f *fakeCaller) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.msg = msg
	return f.result, nil
}

func multiHopPlan(t *testing.T) *Plan {
	t.Helper()
	hop := Path{
		Pools:           []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")},
		Tokens:          []common.Address{testTokenIn, testWBTC, testTokenOut},
		InputAmount:     big.NewInt(400),
		OutputAmount:    big.NewInt(3_900),
		ProtocolVersion: 2,
	}
	plan, err := NewPlan(42161, testTokenIn, testTokenOut, []Path{directPath(600, 6_000), hop})
	require.NoError(t, err)
	return plan
}

func TestBatchSteps(t *testing.T) {
	steps, assets, err := batchSteps(multiHopPlan(t))
	require.NoError(t, err)

	assert.Equal(t, []common.Address{testTokenIn, testTokenOut, testWBTC}, assets)
	require.Len(t, steps, 3)

	assert.Equal(t, int64(600), steps[0].Amount.Int64())
	assert.Equal(t, int64(0), steps[0].AssetInIndex.Int64())
	assert.Equal(t, int64(1), steps[0].AssetOutIndex.Int64())

	assert.Equal(t, int64(400), steps[1].Amount.Int64())
	assert.Equal(t, int64(2), steps[1].AssetOutIndex.Int64())

	// second hop consumes the first hop's output
	assert.Equal(t, int64(0), steps[2].Amount.Int64())
	assert.Equal(t, int64(2), steps[2].AssetInIndex.Int64())
	assert.Equal(t, int64(1), steps[2].AssetOutIndex.Int64())
}

func TestBalancerRouter_Query(t *testing.T) {
	deltas := []*big.Int{big.NewInt(1_000), big.NewInt(-9_800), big.NewInt(0)}
	encoded, err := vaultABI.Methods["queryBatchSwap"].Outputs.Pack(deltas)
	require.NoError(t, err)

	caller := &fakeCaller{result: encoded}
	r := NewBalancerRouter(nil, caller, common.Address{})

	out, err := r.Query(context.Background(), multiHopPlan(t))
	require.NoError(t, err)
	assert.Equal(t, "9800", out.ExpectedAmountOut.String())
	assert.Equal(t, DefaultVaultAddress, *caller.msg.To)
	assert.Equal(t, vaultABI.Methods["queryBatchSwap"].ID, caller.msg.Data[:4])
}

func TestBalancerRouter_Query_NoOutput(t *testing.T) {
	encoded, err := vaultABI.Methods["queryBatchSwap"].Outputs.Pack([]*big.Int{big.NewInt(1), big.NewInt(0), big.NewInt(0)})
	require.NoError(t, err)

	r := NewBalancerRouter(nil, &fakeCaller{result: encoded}, common.Address{})
	_, err = r.Query(context.Background(), multiHopPlan(t))
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestBalancerRouter_BuildCall(t *testing.T) {
	r := NewBalancerRouter(nil, nil, common.Address{})
	plan := multiHopPlan(t)
	sender := common.HexToAddress("0x924a9f036260ddd5808007e1aa95f08ed08aa569")
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	call, err := r.BuildCall(context.Background(), BuildInput{
		Plan:      plan,
		Query:     &QueryOutput{ExpectedAmountOut: big.NewInt(10_000)},
		Slippage:  DefaultSlippage,
		Deadline:  big.NewInt(1_700_003_600),
		Sender:    &sender,
		Recipient: &recipient,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultVaultAddress, call.Target)
	assert.Equal(t, "9900", call.MinAmountOut.String())
	assert.Equal(t, int64(0), call.Value.Int64())

	method := vaultABI.Methods["batchSwap"]
	assert.Equal(t, method.ID, call.CallData[:4])

	args, err := method.Inputs.Unpack(call.CallData[4:])
	require.NoError(t, err)
	require.Len(t, args, 6)

	limits := args[4].([]*big.Int)
	assert.Equal(t, "1000", limits[0].String())
	assert.Equal(t, "-9900", limits[1].String())
	assert.Equal(t, "0", limits[2].String())
	assert.Equal(t, int64(1_700_003_600), args[5].(*big.Int).Int64())
}

func TestBalancerRouter_BuildCall_RequiresSender(t *testing.T) {
	r := NewBalancerRouter(nil, nil, common.Address{})
	_, err := r.BuildCall(context.Background(), BuildInput{
		Plan:     multiHopPlan(t),
		Query:    &QueryOutput{ExpectedAmountOut: big.NewInt(1)},
		Deadline: big.NewInt(1),
	})
	assert.Error(t, err)
}
