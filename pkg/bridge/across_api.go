package bridge

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"bridge-swap/pkg/client"
)

// DefaultAcrossAPIURL is the public Across API
const DefaultAcrossAPIURL = "https://app.across.to/api"

// numeric accepts both JSON strings and JSON numbers
type numeric string

func (n *numeric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	*n = numeric(data)
	return nil
}

func (n numeric) bigInt() (*big.Int, error) {
	if n == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(string(n), 10)
	if !ok {
		return nil, errors.Errorf("invalid integer %q", string(n))
	}
	return v, nil
}

func (n numeric) uint32() (uint32, error) {
	if n == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(n), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid uint32 %q", string(n))
	}
	return uint32(v), nil
}

type apiFee struct {
	Pct   numeric `json:"pct"`
	Total numeric `json:"total"`
}

func (f apiFee) fee() (Fee, error) {
	pct, err := f.Pct.bigInt()
	if err != nil {
		return Fee{}, err
	}
	total, err := f.Total.bigInt()
	if err != nil {
		return Fee{}, err
	}
	if pct == nil {
		pct = new(big.Int)
	}
	if total == nil {
		total = new(big.Int)
	}
	return Fee{Pct: pct, Total: total}, nil
}

type suggestedFeesResponse struct {
	TotalRelayFee       apiFee  `json:"totalRelayFee"`
	RelayerCapitalFee   apiFee  `json:"relayerCapitalFee"`
	RelayerGasFee       apiFee  `json:"relayerGasFee"`
	LpFee               apiFee  `json:"lpFee"`
	Timestamp           numeric `json:"timestamp"`
	IsAmountTooLow      bool    `json:"isAmountTooLow"`
	SpokePoolAddress    string  `json:"spokePoolAddress"`
	ExclusiveRelayer    string  `json:"exclusiveRelayer"`
	ExclusivityDeadline numeric `json:"exclusivityDeadline"`
	ExpectedFillTimeSec numeric `json:"expectedFillTimeSec"`
	FillDeadline        numeric `json:"fillDeadline"`
	OutputAmount        numeric `json:"outputAmount"`
}

type depositStatusResponse struct {
	Status             string  `json:"status"`
	FillTx             string  `json:"fillTx"`
	DepositTxHash      string  `json:"depositTxHash"`
	DestinationChainID numeric `json:"destinationChainId"`
}

// FeesRequest are the parameters of a suggested-fees lookup
type FeesRequest struct {
	InputToken         common.Address
	OutputToken        common.Address
	OriginChainID      int64
	DestinationChainID int64
	Amount             *big.Int
	Recipient          common.Address
	Message            []byte
}

// SuggestedFees is the priced answer to a FeesRequest
type SuggestedFees struct {
	Fees                Fees
	IsAmountTooLow      bool
	SpokePool           common.Address
	ExclusiveRelayer    common.Address
	QuoteTimestamp      uint32
	FillDeadline        uint32
	ExclusivityDeadline uint32
	ExpectedFillTimeSec int64
	// OutputAmount is nil when the API does not report it
	OutputAmount *big.Int
}

// AcrossAPI talks to the Across REST API
type AcrossAPI struct {
	api *client.APIClient
}

// NewAcrossAPI wraps an API client rooted at the Across API base URL
func NewAcrossAPI(api *client.APIClient) *AcrossAPI {
	return &AcrossAPI{api: api}
}

// SuggestedFees prices a deposit
func (a *AcrossAPI) SuggestedFees(ctx context.Context, req FeesRequest) (*SuggestedFees, error) {
	query := url.Values{
		"inputToken":         {req.InputToken.Hex()},
		"outputToken":        {req.OutputToken.Hex()},
		"originChainId":      {strconv.FormatInt(req.OriginChainID, 10)},
		"destinationChainId": {strconv.FormatInt(req.DestinationChainID, 10)},
		"amount":             {req.Amount.String()},
		"recipient":          {req.Recipient.Hex()},
	}
	if len(req.Message) > 0 {
		query.Set("message", hexutil.Encode(req.Message))
	}

	var resp suggestedFeesResponse
	if err := a.api.Get(ctx, "/suggested-fees", query, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to get suggested fees")
	}

	return resp.parse()
}

func (r suggestedFeesResponse) parse() (*SuggestedFees, error) {
	out := &SuggestedFees{IsAmountTooLow: r.IsAmountTooLow}

	var err error
	if out.Fees.TotalRelay, err = r.TotalRelayFee.fee(); err != nil {
		return nil, errors.Wrap(err, "totalRelayFee")
	}
	if out.Fees.RelayerCapital, err = r.RelayerCapitalFee.fee(); err != nil {
		return nil, errors.Wrap(err, "relayerCapitalFee")
	}
	if out.Fees.RelayerGas, err = r.RelayerGasFee.fee(); err != nil {
		return nil, errors.Wrap(err, "relayerGasFee")
	}
	if out.Fees.LP, err = r.LpFee.fee(); err != nil {
		return nil, errors.Wrap(err, "lpFee")
	}
	if out.QuoteTimestamp, err = r.Timestamp.uint32(); err != nil {
		return nil, err
	}
	if out.FillDeadline, err = r.FillDeadline.uint32(); err != nil {
		return nil, err
	}
	if out.ExclusivityDeadline, err = r.ExclusivityDeadline.uint32(); err != nil {
		return nil, err
	}
	if out.OutputAmount, err = r.OutputAmount.bigInt(); err != nil {
		return nil, err
	}
	if r.ExpectedFillTimeSec != "" {
		if out.ExpectedFillTimeSec, err = strconv.ParseInt(string(r.ExpectedFillTimeSec), 10, 64); err != nil {
			return nil, errors.Wrap(err, "expectedFillTimeSec")
		}
	}

	if !common.IsHexAddress(r.SpokePoolAddress) {
		return nil, errors.Errorf("invalid spoke pool address %q", r.SpokePoolAddress)
	}
	out.SpokePool = common.HexToAddress(r.SpokePoolAddress)
	if r.ExclusiveRelayer != "" {
		out.ExclusiveRelayer = common.HexToAddress(r.ExclusiveRelayer)
	}

	return out, nil
}

// DepositStatus looks a deposit up by its origin chain and deposit id
func (a *AcrossAPI) DepositStatus(ctx context.Context, originChainID int64, depositID string) (*DepositStatus, error) {
	query := url.Values{
		"originChainId": {strconv.FormatInt(originChainID, 10)},
		"depositId":     {depositID},
	}

	var resp depositStatusResponse
	if err := a.api.Get(ctx, "/deposit/status", query, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to get deposit status")
	}

	status := &DepositStatus{
		Status:        strings.ToLower(resp.Status),
		DepositTxHash: resp.DepositTxHash,
		FillTxHash:    resp.FillTx,
	}
	if resp.DestinationChainID != "" {
		id, err := strconv.ParseInt(string(resp.DestinationChainID), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "destinationChainId")
		}
		status.DestinationChainID = id
	}
	return status, nil
}
