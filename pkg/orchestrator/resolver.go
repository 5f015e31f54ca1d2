package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bridge-swap/pkg/action"
)

// resolver is the bridge.Resolver used during execution. The message's
// actions are updated on the first call only; later calls return the same
// result.
type resolver struct {
	message *action.CrossChainMessage
	timeout time.Duration
	log     *logrus.Entry

	once    sync.Once
	called  bool
	calls   []action.Call
	encoded []byte
	amount  *big.Int
	err     error
}

func newResolver(message *action.CrossChainMessage, timeout time.Duration, log *logrus.Entry) *resolver {
	return &resolver{message: message, timeout: timeout, log: log}
}

func (r *resolver) ResolveMessage(ctx context.Context, outputAmount *big.Int) ([]byte, error) {
	r.once.Do(func() {
		r.resolve(ctx, outputAmount)
	})
	return r.encoded, r.err
}

func (r *resolver) resolve(ctx context.Context, amount *big.Int) {
	r.called = true
	if amount != nil {
		r.amount = new(big.Int).Set(amount)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	calls, err := r.message.Resolve(ctx, amount)
	if err != nil {
		r.err = errors.Wrap(err, "failed to update actions for delivered amount")
		return
	}
	encoded, err := r.message.Encode(calls)
	if err != nil {
		r.err = err
		return
	}

	r.calls = calls
	r.encoded = encoded
	r.log.WithFields(logrus.Fields{
		"amount":   amount.String(),
		"elapsed":  time.Since(start).String(),
		"n_calls":  len(calls),
		"msg_size": len(encoded),
	}).Info("actions updated for delivered amount")
}

// resolution is the outcome of the single update round
type resolution struct {
	Called bool
	Amount *big.Int
	Calls  []action.Call
	Err    error
}

// result is read after the engine has returned
func (r *resolver) result() resolution {
	return resolution{Called: r.called, Amount: r.amount, Calls: r.calls, Err: r.err}
}
