package cmd

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bridge-swap/config"
	"bridge-swap/pkg/action"
	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/client"
	"bridge-swap/pkg/orchestrator"
	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

// app holds the collaborators of one command invocation
type app struct {
	cfg         *config.Config
	log         *logrus.Entry
	route       *route.Descriptor
	signer      chain.Signer
	origin      *chain.Client
	destination *chain.Client
	engine      *bridge.AcrossEngine
	generator   *swap.Generator
}

// newApp validates cfg, dials the origin chain and, when withDestination is
// set, the destination chain with everything that quotes against it
func newApp(ctx context.Context, cfg *config.Config, log *logrus.Entry, withDestination bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r, err := cfg.Route()
	if err != nil {
		return nil, err
	}
	signer, err := chain.NewSigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, route: r, signer: signer}

	a.origin, err = chain.Dial(ctx, r.Origin().RPCURL, r.Origin().ID, log.WithField("chain", r.Origin().Name))
	if err != nil {
		return nil, errors.Wrapf(err, "origin chain %s", r.Origin().Name)
	}
	a.origin.SetPollInterval(cfg.ReceiptPollInterval)

	if !withDestination {
		return a, nil
	}

	a.destination, err = chain.Dial(ctx, r.Destination().RPCURL, r.Destination().ID, log.WithField("chain", r.Destination().Name))
	if err != nil {
		a.Close()
		return nil, errors.Wrapf(err, "destination chain %s", r.Destination().Name)
	}
	a.destination.SetPollInterval(cfg.ReceiptPollInterval)

	a.engine, err = newEngine(cfg, a.origin, a.destination, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	slippage, err := cfg.Slippage()
	if err != nil {
		a.Close()
		return nil, err
	}
	if !common.IsHexAddress(cfg.BalancerVault) {
		a.Close()
		return nil, errors.Errorf("invalid balancer vault address %q", cfg.BalancerVault)
	}
	router := swap.NewBalancerRouter(
		swap.NewBalancerAPI(client.NewAPIClient(cfg.BalancerAPIURL)),
		a.destination,
		common.HexToAddress(cfg.BalancerVault),
	)
	a.generator = swap.NewGenerator(router, slippage, cfg.Deadline, log)

	return a, nil
}

// newEngine builds the bridge engine. Chain clients may be nil when only
// deposit status is needed.
func newEngine(cfg *config.Config, origin bridge.OriginChain, destination bridge.DestinationChain, log *logrus.Entry) (*bridge.AcrossEngine, error) {
	opts := bridge.AcrossOptions{
		API:          bridge.NewAcrossAPI(client.NewAPIClient(cfg.AcrossAPIURL)),
		Origin:       origin,
		Destination:  destination,
		IntegratorID: cfg.IntegratorID,
		PollInterval: cfg.StatusPollInterval,
		FillTimeout:  cfg.FillTimeout,
		Log:          log.WithField("component", "bridge"),
	}
	return bridge.NewAcrossEngine(opts)
}

func (a *app) orchestrator(observer bridge.Observer) (*orchestrator.Orchestrator, error) {
	if a.engine == nil {
		return nil, errors.New("destination chain not connected")
	}
	return orchestrator.New(orchestrator.Options{
		Route:         a.route,
		Signer:        a.signer,
		Balances:      a.origin,
		Builder:       action.NewBuilder(a.generator, a.route, a.signer.Address(), a.log),
		Engine:        a.engine,
		UpdateTimeout: a.cfg.UpdateTimeout,
		Observer:      observer,
		Log:           a.log,
	})
}

// Close releases the RPC connections
func (a *app) Close() {
	if a.origin != nil {
		a.origin.Close()
	}
	if a.destination != nil {
		a.destination.Close()
	}
}
