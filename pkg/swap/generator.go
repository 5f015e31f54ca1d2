package swap

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bridge-swap/pkg/route"
)

const (
	// DefaultSlippage is 1%
	DefaultSlippage Slippage = 100

	// DefaultDeadline is how long an encoded swap stays executable
	DefaultDeadline = time.Hour
)

// Generator produces exact-input swap calls through a Router.
// Results are not deterministic across calls: live liquidity can move the
// target, call data and minimum output for the same nominal amount.
type Generator struct {
	router   Router
	slippage Slippage
	deadline time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

// NewGenerator creates a Generator. Zero slippage or deadline select the defaults.
func NewGenerator(router Router, slippage Slippage, deadline time.Duration, log *logrus.Entry) *Generator {
	if slippage == 0 {
		slippage = DefaultSlippage
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Generator{
		router:   router,
		slippage: slippage,
		deadline: deadline,
		now:      time.Now,
		log:      log.WithField("component", "swap"),
	}
}

// Slippage returns the tolerance applied to every call
func (g *Generator) Slippage() Slippage { return g.slippage }

// Generate fetches paths, re-queries them on chain and builds the final call
func (g *Generator) Generate(ctx context.Context, req Request) (*Call, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, &QuoteError{Stage: "validating request", Err: errors.New("swap amount must be greater than 0")}
	}

	paths, err := g.router.FetchPaths(ctx, PathRequest{
		ChainID:  req.ChainID,
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, &QuoteError{Stage: "fetching paths", Err: err}
	}

	plan, err := NewPlan(req.ChainID, req.TokenIn.Address, req.TokenOut.Address, paths)
	if err != nil {
		return nil, &QuoteError{Stage: "building plan", Err: err}
	}

	// paths may be stale, so the output estimate is refreshed on chain
	queried, err := g.router.Query(ctx, plan)
	if err != nil {
		return nil, &QuoteError{Stage: "querying on chain", Err: err}
	}
	if queried.ExpectedAmountOut == nil || queried.ExpectedAmountOut.Sign() <= 0 {
		return nil, &QuoteError{Stage: "querying on chain", Err: ErrNoPath}
	}

	in := BuildInput{
		Plan:     plan,
		Query:    queried,
		Slippage: g.slippage,
		Deadline: big.NewInt(g.now().Add(g.deadline).Unix()),
	}
	if !plan.FixesSenderAndRecipient() {
		sender, recipient := req.Sender, req.Recipient
		in.Sender = &sender
		in.Recipient = &recipient
	}

	call, err := g.router.BuildCall(ctx, in)
	if err != nil {
		return nil, &QuoteError{Stage: "building call", Err: err}
	}

	g.log.WithFields(logrus.Fields{
		"token_in":      req.TokenIn.String(),
		"token_out":     req.TokenOut.String(),
		"amount":        route.FormatUnits(req.Amount, req.TokenIn.Decimals),
		"path_estimate": route.FormatUnits(plan.OutputAmount, req.TokenOut.Decimals),
		"expected_out":  route.FormatUnits(queried.ExpectedAmountOut, req.TokenOut.Decimals),
		"min_out":       route.FormatUnits(call.MinAmountOut, req.TokenOut.Decimals),
		"target":        call.Target.Hex(),
		"protocol":      plan.ProtocolVersion,
	}).Debug("swap call generated")

	return call, nil
}
