package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/route"
)

var (
	ErrAmountTooLow    = errors.New("input amount too low to cover bridge fees")
	ErrDepositExpired  = errors.New("deposit expired before it was filled")
	ErrMessageRequired = errors.New("quote has no cross-chain message")
)

// Step is a stage of quote execution
type Step int

const (
	StepApprove Step = iota
	StepDeposit
	StepFill
)

// Steps lists every step in execution order
var Steps = []Step{StepApprove, StepDeposit, StepFill}

func (s Step) String() string {
	switch s {
	case StepApprove:
		return "approve"
	case StepDeposit:
		return "deposit"
	case StepFill:
		return "fill"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// MarshalText renders the step name in JSON output and map keys
func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a step name written by MarshalText
func (s *Step) UnmarshalText(text []byte) error {
	for _, step := range Steps {
		if step.String() == string(text) {
			*s = step
			return nil
		}
	}
	return errors.Errorf("unknown step %q", string(text))
}

// Status is the state a step reports
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status name in JSON output
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Progress is one notification from ExecuteQuote
type Progress struct {
	Step   Step
	Status Status

	// TxHash is set on success for every step that sent or observed a transaction
	TxHash string

	// DepositID is the cross-chain correlation id, set on deposit success
	DepositID string

	// ActionSuccess reports whether the delivered actions themselves
	// succeeded, set on fill success
	ActionSuccess bool

	// Err is set on failure
	Err error
}

// Fee is one component of the bridge fee
type Fee struct {
	Pct   *big.Int `json:"pct"`
	Total *big.Int `json:"total"`
}

// Fees breaks down what the bridge charges
type Fees struct {
	TotalRelay     Fee `json:"total_relay"`
	RelayerCapital Fee `json:"relayer_capital"`
	RelayerGas     Fee `json:"relayer_gas"`
	LP             Fee `json:"lp"`
}

// Deposit holds everything needed to submit the origin-chain deposit
type Deposit struct {
	OriginChainID       int64          `json:"origin_chain_id"`
	DestinationChainID  int64          `json:"destination_chain_id"`
	SpokePool           common.Address `json:"spoke_pool"`
	InputToken          common.Address `json:"input_token"`
	OutputToken         common.Address `json:"output_token"`
	InputAmount         *big.Int       `json:"input_amount"`
	OutputAmount        *big.Int       `json:"output_amount"`
	Recipient           common.Address `json:"recipient"`
	ExclusiveRelayer    common.Address `json:"exclusive_relayer"`
	QuoteTimestamp      uint32         `json:"quote_timestamp"`
	FillDeadline        uint32         `json:"fill_deadline"`
	ExclusivityDeadline uint32         `json:"exclusivity_deadline"`
	Message             hexutil.Bytes  `json:"message"`
}

// Quote is the priced deposit plan. It is passed to ExecuteQuote unmodified.
type Quote struct {
	Deposit             Deposit `json:"deposit"`
	Fees                Fees    `json:"fees"`
	ExpectedFillTimeSec int64   `json:"expected_fill_time_sec"`
}

// QuoteRequest asks the bridge to price a route with an attached message
type QuoteRequest struct {
	Route       *route.Descriptor
	Message     []byte
	InputAmount *big.Int
	Recipient   common.Address
}

// Observer receives progress notifications. It may see duplicates and
// pending notifications and must not block.
type Observer interface {
	OnProgress(p Progress)
}

// Resolver finalizes the destination message for the amount that will
// actually be delivered
type Resolver interface {
	ResolveMessage(ctx context.Context, outputAmount *big.Int) ([]byte, error)
}

// Hooks are the caller-supplied callbacks for ExecuteQuote
type Hooks struct {
	Observer Observer
	Resolver Resolver
}

// DepositStatus is the bridge's view of a submitted deposit
type DepositStatus struct {
	Status             string `json:"status"`
	DepositTxHash      string `json:"deposit_tx_hash,omitempty"`
	FillTxHash         string `json:"fill_tx_hash,omitempty"`
	DestinationChainID int64  `json:"destination_chain_id,omitempty"`
}

// Engine is the bridge quoting and execution boundary
type Engine interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
	ExecuteQuote(ctx context.Context, signer chain.Signer, quote *Quote, hooks Hooks) error
	DepositStatus(ctx context.Context, originChainID int64, depositID string) (*DepositStatus, error)
}
