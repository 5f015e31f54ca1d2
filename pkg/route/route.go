package route

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Chain identifies an EVM chain and the endpoint used to reach it
type Chain struct {
	ID          int64
	Name        string
	RPCURL      string
	ExplorerURL string
}

// TxURL returns an explorer link for a transaction hash, or the hash itself
// when no explorer is configured
func (c Chain) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return hash
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}

// Token describes an ERC20 token deployed on a specific chain
type Token struct {
	ChainID  int64
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// String returns the token symbol, falling back to its address
func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// Params holds the raw values a Descriptor is built from
type Params struct {
	Origin       Chain
	Destination  Chain
	InputToken   Token
	InputAmount  *big.Int
	SwapTokenIn  Token
	SwapTokenOut Token
	Handler      common.Address
}

// Descriptor is the immutable route for a single bridge-and-swap run.
// It is built once at startup and shared by reference.
type Descriptor struct {
	origin       Chain
	destination  Chain
	inputToken   Token
	inputAmount  *big.Int
	swapTokenIn  Token
	swapTokenOut Token
	handler      common.Address
}

// New validates params and builds a Descriptor
func New(p Params) (*Descriptor, error) {
	if p.Origin.ID == 0 || p.Destination.ID == 0 {
		return nil, errors.New("origin and destination chain ids are required")
	}
	if p.Origin.ID == p.Destination.ID {
		return nil, fmt.Errorf("origin and destination chain must differ (both %d)", p.Origin.ID)
	}
	if p.InputAmount == nil || p.InputAmount.Sign() <= 0 {
		return nil, errors.New("input amount must be greater than 0")
	}
	if p.InputToken.Address == (common.Address{}) {
		return nil, errors.New("input token address is required")
	}
	if p.InputToken.ChainID != p.Origin.ID {
		return nil, fmt.Errorf("input token %s is not on origin chain %d", p.InputToken, p.Origin.ID)
	}
	if p.SwapTokenIn.ChainID != p.Destination.ID || p.SwapTokenOut.ChainID != p.Destination.ID {
		return nil, fmt.Errorf("swap tokens must be on destination chain %d", p.Destination.ID)
	}
	if p.SwapTokenIn.Address == p.SwapTokenOut.Address {
		return nil, errors.New("swap input and output tokens must differ")
	}
	if p.Handler == (common.Address{}) {
		return nil, errors.New("bridge delivery handler address is required")
	}

	return &Descriptor{
		origin:       p.Origin,
		destination:  p.Destination,
		inputToken:   p.InputToken,
		inputAmount:  new(big.Int).Set(p.InputAmount),
		swapTokenIn:  p.SwapTokenIn,
		swapTokenOut: p.SwapTokenOut,
		handler:      p.Handler,
	}, nil
}

// Origin returns the chain the deposit is made on
func (d *Descriptor) Origin() Chain { return d.origin }

// Destination returns the chain the funds are delivered and swapped on
func (d *Descriptor) Destination() Chain { return d.destination }

// InputToken returns the token deposited on the origin chain
func (d *Descriptor) InputToken() Token { return d.inputToken }

// InputAmount returns a copy of the fixed deposit amount in smallest units
func (d *Descriptor) InputAmount() *big.Int { return new(big.Int).Set(d.inputAmount) }

// SwapTokenIn returns the token delivered on the destination chain and sold
func (d *Descriptor) SwapTokenIn() Token { return d.swapTokenIn }

// SwapTokenOut returns the token bought on the destination chain
func (d *Descriptor) SwapTokenOut() Token { return d.swapTokenOut }

// Handler returns the bridge delivery-handler contract on the destination chain
func (d *Descriptor) Handler() common.Address { return d.handler }

// FormattedInputAmount returns the input amount in human-readable units
func (d *Descriptor) FormattedInputAmount() string {
	return FormatUnits(d.inputAmount, d.inputToken.Decimals)
}
