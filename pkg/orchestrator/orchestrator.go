// Package orchestrator runs one bridge-and-swap attempt: balance preflight,
// action building, quoting and execution with fill-time action updates.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bridge-swap/pkg/action"
	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

// DefaultUpdateTimeout bounds the fill-time action update
const DefaultUpdateTimeout = 30 * time.Second

var (
	ErrStepFailed          = errors.New("bridge step failed")
	ErrIncompleteExecution = errors.New("execution ended before every step succeeded")
)

// StepError is returned when the engine reports a failed step
type StepError struct {
	Step bridge.Step
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s step failed", e.Step)
	}
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

// MessageBuilder produces the cross-chain message and the initial swap estimate
type MessageBuilder interface {
	Build(ctx context.Context) (*action.CrossChainMessage, *swap.Call, error)
}

// Options wires an Orchestrator
type Options struct {
	Route    *route.Descriptor
	Signer   chain.Signer
	Balances chain.BalanceReader
	Builder  MessageBuilder
	Engine   bridge.Engine

	UpdateTimeout time.Duration

	// Observer also receives every progress notification, after it is recorded
	Observer bridge.Observer
	Log      *logrus.Entry
}

// Orchestrator drives a single attempt. It holds no state between runs.
type Orchestrator struct {
	route         *route.Descriptor
	signer        chain.Signer
	balances      chain.BalanceReader
	builder       MessageBuilder
	engine        bridge.Engine
	updateTimeout time.Duration
	observer      bridge.Observer
	log           *logrus.Entry
}

// New validates opts
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Route == nil:
		return nil, errors.New("route is required")
	case opts.Signer == nil:
		return nil, errors.New("signer is required")
	case opts.Balances == nil:
		return nil, errors.New("balance reader is required")
	case opts.Builder == nil:
		return nil, errors.New("message builder is required")
	case opts.Engine == nil:
		return nil, errors.New("bridge engine is required")
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = DefaultUpdateTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Orchestrator{
		route:         opts.Route,
		signer:        opts.Signer,
		balances:      opts.Balances,
		builder:       opts.Builder,
		engine:        opts.Engine,
		updateTimeout: opts.UpdateTimeout,
		observer:      opts.Observer,
		log:           opts.Log.WithField("component", "orchestrator"),
	}, nil
}

// Prepared is everything decided before the first transaction is sent
type Prepared struct {
	Balance        *big.Int
	Message        *action.CrossChainMessage
	InitialSwap    *swap.Call
	EncodedMessage []byte
	Quote          *bridge.Quote
}

// Prepare checks the balance, builds the actions and fetches a quote.
// Nothing is sent on chain.
func (o *Orchestrator) Prepare(ctx context.Context) (*Prepared, error) {
	r := o.route
	user := o.signer.Address()

	balance, err := chain.CheckBalance(ctx, o.balances, user, r.InputToken(), r.InputAmount())
	if err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"token":    r.InputToken().String(),
		"balance":  route.FormatUnits(balance, r.InputToken().Decimals),
		"required":  r.FormattedInputAmount(),
		"holder":   user.Hex(),
	}).Info("balance check passed")

	message, initial, err := o.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := message.EncodeCurrent()
	if err != nil {
		return nil, err
	}

	quote, err := o.engine.GetQuote(ctx, bridge.QuoteRequest{
		Route:       r,
		Message:     encoded,
		InputAmount: r.InputAmount(),
		Recipient:   r.Handler(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bridge quote")
	}
	o.log.WithFields(logrus.Fields{
		"output_amount": route.FormatUnits(quote.Deposit.OutputAmount, r.SwapTokenIn().Decimals),
		"fill_time_sec": quote.ExpectedFillTimeSec,
	}).Info("bridge quote received")

	return &Prepared{
		Balance:        balance,
		Message:        message,
		InitialSwap:    initial,
		EncodedMessage: encoded,
		Quote:          quote,
	}, nil
}

// Execute runs the prepared quote through the engine. The first failed
// step or failed action update aborts the run; nothing is retried.
func (o *Orchestrator) Execute(ctx context.Context, p *Prepared) (*Outcome, error) {
	if p == nil || p.Quote == nil || p.Message == nil {
		return nil, errors.New("nothing prepared to execute")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := newRecorder(cancel, o.observer, o.log)
	res := newResolver(p.Message, o.updateTimeout, o.log)

	execErr := o.engine.ExecuteQuote(ctx, o.signer, p.Quote, bridge.Hooks{Observer: rec, Resolver: res})

	outcome, failure := rec.snapshot()
	resolved := res.result()
	if resolved.Amount != nil {
		outcome.DeliveredAmount = resolved.Amount.String()
	}
	if resolved.Called && resolved.Err == nil {
		if minOut := swapMinAmountOut(p.Message); minOut != nil {
			outcome.MinAmountOut = minOut.String()
		}
	}

	switch {
	case resolved.Err != nil:
		return outcome, resolved.Err
	case failure != nil:
		return outcome, failure
	case execErr != nil:
		return outcome, errors.Wrap(execErr, "bridge execution failed")
	case !outcome.Complete():
		return outcome, ErrIncompleteExecution
	}

	o.log.WithFields(logrus.Fields{
		"deposit_id":     outcome.DepositID,
		"fill_tx":        outcome.FillTx,
		"action_success": outcome.ActionSuccess,
	}).Info("bridge and swap finished")
	return outcome, nil
}

// Run prepares and executes in one go
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	p, err := o.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, p)
}

func swapMinAmountOut(m *action.CrossChainMessage) *big.Int {
	for _, a := range m.Actions() {
		if s, ok := a.(*action.SwapAction); ok && s.LastCall() != nil {
			return s.LastCall().MinAmountOut
		}
	}
	return nil
}
