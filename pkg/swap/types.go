package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"bridge-swap/pkg/route"
)

// ErrSwapQuote is matched by every failure to produce a swap call
var ErrSwapQuote = errors.New("swap quote failed")

// ErrNoPath is returned by routers when no liquidity path exists
var ErrNoPath = errors.New("no swap path found")

// QuoteError wraps a routing failure with the stage it happened in
type QuoteError struct {
	Stage string
	Err   error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("swap quote failed while %s: %v", e.Stage, e.Err)
}

func (e *QuoteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSwapQuote) hold
func (e *QuoteError) Is(target error) bool { return target == ErrSwapQuote }

// Path is a sequence of pools converting Tokens[0] into Tokens[len-1]
type Path struct {
	Pools           []common.Hash
	Tokens          []common.Address
	InputAmount     *big.Int
	OutputAmount    *big.Int
	ProtocolVersion int
}

// PathRequest asks the routing engine for exact-input paths
type PathRequest struct {
	ChainID  int64
	TokenIn  route.Token
	TokenOut route.Token
	Amount   *big.Int
}

// QueryOutput is a plan's expected output refreshed against live state
type QueryOutput struct {
	ExpectedAmountOut *big.Int
}

// BuildInput is everything a router needs to encode the final call.
// Sender and Recipient are nil when the protocol fixes them to the caller.
type BuildInput struct {
	Plan      *Plan
	Query     *QueryOutput
	Slippage  Slippage
	Deadline  *big.Int
	Sender    *common.Address
	Recipient *common.Address
}

// Call is an encoded destination-chain swap
type Call struct {
	Target            common.Address
	CallData          []byte
	Value             *big.Int
	MinAmountOut      *big.Int
	ExpectedAmountOut *big.Int
}

// Request describes the swap a caller wants encoded
type Request struct {
	ChainID   int64
	TokenIn   route.Token
	TokenOut  route.Token
	Amount    *big.Int
	Sender    common.Address
	Recipient common.Address
}

// WithAmount returns a copy of r for a different input amount
func (r Request) WithAmount(amount *big.Int) Request {
	r.Amount = new(big.Int).Set(amount)
	return r
}

// Router is the swap routing engine boundary
type Router interface {
	FetchPaths(ctx context.Context, req PathRequest) ([]Path, error)
	Query(ctx context.Context, plan *Plan) (*QueryOutput, error)
	BuildCall(ctx context.Context, in BuildInput) (*Call, error)
}
