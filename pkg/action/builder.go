package action

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

// Builder assembles the [approve, swap] message for a route
type Builder struct {
	generator CallGenerator
	route     *route.Descriptor
	user      common.Address
	log       *logrus.Entry
}

// NewBuilder creates a Builder for the user initiating the run
func NewBuilder(generator CallGenerator, r *route.Descriptor, user common.Address, log *logrus.Entry) *Builder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Builder{
		generator: generator,
		route:     r,
		user:      user,
		log:       log.WithField("component", "actions"),
	}
}

// Build estimates the swap for the route's input amount and returns the
// message together with that initial estimate
func (b *Builder) Build(ctx context.Context) (*CrossChainMessage, *swap.Call, error) {
	amount := b.route.InputAmount()

	// the handler executes the swap, so it is both sender and source of funds;
	// output goes straight to the user
	req := swap.Request{
		ChainID:   b.route.Destination().ID,
		TokenIn:   b.route.SwapTokenIn(),
		TokenOut:  b.route.SwapTokenOut(),
		Amount:    amount,
		Sender:    b.route.Handler(),
		Recipient: b.user,
	}

	initial, err := b.generator.Generate(ctx, req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate initial swap call")
	}

	approve, err := NewApproveAction(b.route.SwapTokenIn().Address, initial.Target, amount)
	if err != nil {
		return nil, nil, err
	}
	swapAction := NewSwapAction(b.generator, req, initial)

	msg, err := NewCrossChainMessage([]Action{approve, swapAction}, b.user)
	if err != nil {
		return nil, nil, err
	}

	b.log.WithFields(logrus.Fields{
		"swap_target": initial.Target.Hex(),
		"fallback":    b.user.Hex(),
	}).Info("cross-chain actions built")

	return msg, initial, nil
}
