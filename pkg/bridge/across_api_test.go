package bridge

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-swap/pkg/client"
)

const suggestedFeesBody = `{
	"totalRelayFee": {"pct": "4500000000000000", "total": "45000"},
	"relayerCapitalFee": {"pct": "100000000000000", "total": "1000"},
	"relayerGasFee": {"pct": "4000000000000000", "total": "40000"},
	"lpFee": {"pct": "400000000000000", "total": "4000"},
	"timestamp": "1717000000",
	"isAmountTooLow": false,
	"quoteBlock": "15000000",
	"spokePoolAddress": "0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64",
	"exclusiveRelayer": "0x0000000000000000000000000000000000000000",
	"exclusivityDeadline": 0,
	"expectedFillTimeSec": "4",
	"fillDeadline": "1717021600",
	"outputAmount": "9955000"
}`

func newTestAPI(t *testing.T, handler http.HandlerFunc) *AcrossAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := client.NewAPIClient(srv.URL + "/api")
	c.SetRetryMax(0)
	return NewAcrossAPI(c)
}

func TestAcrossAPI_SuggestedFees(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/suggested-fees", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, usdcBase.Hex(), q.Get("inputToken"))
		assert.Equal(t, usdcArb.Hex(), q.Get("outputToken"))
		assert.Equal(t, "8453", q.Get("originChainId"))
		assert.Equal(t, "42161", q.Get("destinationChainId"))
		assert.Equal(t, "10000000", q.Get("amount"))
		assert.Equal(t, handler.Hex(), q.Get("recipient"))
		assert.Equal(t, "0xabcd", q.Get("message"))
		_, _ = w.Write([]byte(suggestedFeesBody))
	})

	fees, err := api.SuggestedFees(context.Background(), FeesRequest{
		InputToken:         usdcBase,
		OutputToken:        usdcArb,
		OriginChainID:      8453,
		DestinationChainID: 42161,
		Amount:             big.NewInt(10_000_000),
		Recipient:          handler,
		Message:            []byte{0xab, 0xcd},
	})
	require.NoError(t, err)

	assert.Equal(t, "45000", fees.Fees.TotalRelay.Total.String())
	assert.Equal(t, "4500000000000000", fees.Fees.TotalRelay.Pct.String())
	assert.Equal(t, "40000", fees.Fees.RelayerGas.Total.String())
	assert.Equal(t, "4000", fees.Fees.LP.Total.String())
	assert.Equal(t, uint32(1717000000), fees.QuoteTimestamp)
	assert.Equal(t, uint32(1717021600), fees.FillDeadline)
	assert.Equal(t, uint32(0), fees.ExclusivityDeadline)
	assert.Equal(t, int64(4), fees.ExpectedFillTimeSec)
	assert.Equal(t, "9955000", fees.OutputAmount.String())
	assert.Equal(t, common.HexToAddress("0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64"), fees.SpokePool)
	assert.False(t, fees.IsAmountTooLow)
}

func TestAcrossAPI_SuggestedFees_WithoutOutputAmount(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"totalRelayFee": {"pct": "1", "total": "100"},
			"spokePoolAddress": "0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64",
			"isAmountTooLow": true
		}`))
	})

	fees, err := api.SuggestedFees(context.Background(), FeesRequest{Amount: big.NewInt(1)})
	require.NoError(t, err)
	assert.Nil(t, fees.OutputAmount)
	assert.True(t, fees.IsAmountTooLow)
	assert.Equal(t, int64(0), fees.Fees.LP.Total.Int64())
}

func TestAcrossAPI_SuggestedFees_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusBadRequest, `{"message":"Route is not enabled"}`},
		{"bad amount", http.StatusOK, `{"totalRelayFee": {"pct": "1", "total": "x"}, "spokePoolAddress": "0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64"}`},
		{"bad spoke pool", http.StatusOK, `{"spokePoolAddress": "pool"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := api.SuggestedFees(context.Background(), FeesRequest{Amount: big.NewInt(1)})
			assert.Error(t, err)
		})
	}
}

func TestAcrossAPI_DepositStatus(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deposit/status", r.URL.Path)
		assert.Equal(t, "8453", r.URL.Query().Get("originChainId"))
		assert.Equal(t, "1234", r.URL.Query().Get("depositId"))
		_, _ = w.Write([]byte(`{"status":"FILLED","fillTx":"0xfeed","depositTxHash":"0xbeef","destinationChainId":42161}`))
	})

	status, err := api.DepositStatus(context.Background(), 8453, "1234")
	require.NoError(t, err)
	assert.Equal(t, "filled", status.Status)
	assert.Equal(t, "0xfeed", status.FillTxHash)
	assert.Equal(t, "0xbeef", status.DepositTxHash)
	assert.Equal(t, int64(42161), status.DestinationChainID)
}
