package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-swap/pkg/action"
	"bridge-swap/pkg/bridge"
	"bridge-swap/pkg/chain"
	"bridge-swap/pkg/route"
	"bridge-swap/pkg/swap"
)

var (
	vault    = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	other    = common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582")
	user     = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	handler  = common.HexToAddress("0x924a9f036260ddd5808007e1aa95f08ed08aa569")
	usdcBase = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	usdcArb  = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	wethArb  = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")

	delivered = big.NewInt(9_955_000)
)

func testRoute(t *testing.T) *route.Descriptor {
	t.Helper()
	r, err := route.New(route.Params{
		Origin:       route.Chain{ID: 8453, Name: "base"},
		Destination:  route.Chain{ID: 42161, Name: "arbitrum"},
		InputToken:   route.Token{ChainID: 8453, Address: usdcBase, Decimals: 6, Symbol: "USDC"},
		InputAmount:  big.NewInt(10_000_000),
		SwapTokenIn:  route.Token{ChainID: 42161, Address: usdcArb, Decimals: 6, Symbol: "USDC"},
		SwapTokenOut: route.Token{ChainID: 42161, Address: wethArb, Decimals: 18, Symbol: "WETH"},
		Handler:      handler,
	})
	require.NoError(t, err)
	return r
}

type testSigner struct{}

func (testSigner) Address() common.Address { return user }
func (testSigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

type fakeBalances struct {
	balance *big.Int
}

func (f *fakeBalances) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return f.balance, nil
}

// countingGenerator prices at a fixed rate. From the second call on it can
// switch target or block until its context ends.
type countingGenerator struct {
	mu           sync.Mutex
	calls        []*big.Int
	switchTarget bool
	block        bool
}

func (g *countingGenerator) Generate(ctx context.Context, req swap.Request) (*swap.Call, error) {
	g.mu.Lock()
	g.calls = append(g.calls, new(big.Int).Set(req.Amount))
	n := len(g.calls)
	g.mu.Unlock()

	target := vault
	if n > 1 {
		if g.block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if g.switchTarget {
			target = other
		}
	}
	expected := new(big.Int).Mul(req.Amount, big.NewInt(300_000_000))
	return &swap.Call{
		Target:            target,
		CallData:          append([]byte{0x52, 0xbb}, req.Amount.Bytes()...),
		Value:             big.NewInt(0),
		MinAmountOut:      swap.DefaultSlippage.MinAmountOut(expected),
		ExpectedAmountOut: expected,
	}, nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// event is one scripted engine move: a progress notification, or a call to
// the resolver when resolve is set
type event struct {
	progress bridge.Progress
	resolve  bool
}

func ev(step bridge.Step, status bridge.Status) event {
	return event{progress: bridge.Progress{Step: step, Status: status}}
}

func resolveEvent() event { return event{resolve: true} }

type scriptedEngine struct {
	script       []event
	quoteRequest bridge.QuoteRequest
	quoteCalls   int
	messages     [][]byte
	ctxErr       error
	returnErr    error
}

func (e *scriptedEngine) GetQuote(_ context.Context, req bridge.QuoteRequest) (*bridge.Quote, error) {
	e.quoteCalls++
	e.quoteRequest = req
	return &bridge.Quote{Deposit: bridge.Deposit{
		InputAmount:  req.InputAmount,
		OutputAmount: new(big.Int).Set(delivered),
		Recipient:    req.Recipient,
		Message:      req.Message,
	}}, nil
}

func (e *scriptedEngine) ExecuteQuote(ctx context.Context, _ chain.Signer, quote *bridge.Quote, hooks bridge.Hooks) error {
	for _, step := range e.script {
		if step.resolve {
			msg, err := hooks.Resolver.ResolveMessage(ctx, quote.Deposit.OutputAmount)
			if err != nil {
				hooks.Observer.OnProgress(bridge.Progress{Step: bridge.StepFill, Status: bridge.StatusFailure, Err: err})
				e.ctxErr = ctx.Err()
				return err
			}
			e.messages = append(e.messages, msg)
			continue
		}
		hooks.Observer.OnProgress(step.progress)
	}
	e.ctxErr = ctx.Err()
	return e.returnErr
}

func (e *scriptedEngine) DepositStatus(context.Context, int64, string) (*bridge.DepositStatus, error) {
	return nil, errors.New("not implemented")
}

type forwardedEvents struct {
	events []bridge.Progress
}

func (f *forwardedEvents) OnProgress(p bridge.Progress) { f.events = append(f.events, p) }

func newTestOrchestrator(t *testing.T, gen *countingGenerator, engine *scriptedEngine, opts ...func(*Options)) *Orchestrator {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(log)

	r := testRoute(t)
	o := Options{
		Route:         r,
		Signer:        testSigner{},
		Balances:      &fakeBalances{balance: big.NewInt(50_000_000)},
		Builder:       action.NewBuilder(gen, r, user, entry),
		Engine:        engine,
		UpdateTimeout: time.Second,
		Log:           entry,
	}
	for _, opt := range opts {
		opt(&o)
	}
	orch, err := New(o)
	require.NoError(t, err)
	return orch
}

func successScript(actionSuccess bool) []event {
	return []event{
		{progress: bridge.Progress{Step: bridge.StepApprove, Status: bridge.StatusPending}},
		{progress: bridge.Progress{Step: bridge.StepApprove, Status: bridge.StatusSuccess, TxHash: "0xa1"}},
		{progress: bridge.Progress{Step: bridge.StepDeposit, Status: bridge.StatusSuccess, TxHash: "0xd1", DepositID: "D"}},
		resolveEvent(),
		{progress: bridge.Progress{Step: bridge.StepFill, Status: bridge.StatusSuccess, TxHash: "0xf1", ActionSuccess: actionSuccess}},
	}
}

func TestRun_Success(t *testing.T) {
	gen := &countingGenerator{}
	engine := &scriptedEngine{script: successScript(true)}
	fwd := &forwardedEvents{}
	orch := newTestOrchestrator(t, gen, engine, func(o *Options) { o.Observer = fwd })

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0xa1", outcome.ApproveTx)
	assert.Equal(t, "0xd1", outcome.DepositTx)
	assert.Equal(t, "D", outcome.DepositID)
	assert.Equal(t, "0xf1", outcome.FillTx)
	assert.True(t, outcome.ActionSuccess)
	assert.True(t, outcome.Complete())
	for _, step := range bridge.Steps {
		assert.True(t, outcome.Steps[step].Succeeded, step.String())
	}
	assert.Equal(t, 2, outcome.Steps[bridge.StepApprove].Notifications)
	assert.Len(t, fwd.events, 4)

	// initial estimate for the input amount, then one update for the delivered amount
	require.Equal(t, 2, gen.count())
	assert.Equal(t, "10000000", gen.calls[0].String())
	assert.Equal(t, "9955000", gen.calls[1].String())
	assert.Equal(t, "9955000", outcome.DeliveredAmount)
	assert.NotEmpty(t, outcome.MinAmountOut)
}

func TestRun_ResolvedMessageReflectsDeliveredAmount(t *testing.T) {
	gen := &countingGenerator{}
	engine := &scriptedEngine{script: successScript(true)}
	orch := newTestOrchestrator(t, gen, engine)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, engine.messages, 1)
	calls, fallback, err := action.DecodeInstructions(engine.messages[0])
	require.NoError(t, err)
	assert.Equal(t, user, fallback)
	require.Len(t, calls, 2)

	assert.Equal(t, usdcArb, calls[0].Target)
	spender, amount, err := chain.UnpackApprove(calls[0].CallData)
	require.NoError(t, err)
	assert.Equal(t, vault, spender)
	assert.Equal(t, delivered.String(), amount.String())

	assert.Equal(t, vault, calls[1].Target)
	assert.Equal(t, append([]byte{0x52, 0xbb}, delivered.Bytes()...), calls[1].CallData)
}

func TestPrepare_QuoteCarriesInitialMessage(t *testing.T) {
	gen := &countingGenerator{}
	engine := &scriptedEngine{}
	orch := newTestOrchestrator(t, gen, engine)

	p, err := orch.Prepare(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, engine.quoteCalls)
	assert.Equal(t, handler, engine.quoteRequest.Recipient)
	assert.Equal(t, "10000000", engine.quoteRequest.InputAmount.String())
	assert.Equal(t, p.EncodedMessage, engine.quoteRequest.Message)
	assert.Equal(t, "50000000", p.Balance.String())
	assert.Equal(t, vault, p.InitialSwap.Target)

	calls, fallback, err := action.DecodeInstructions(p.EncodedMessage)
	require.NoError(t, err)
	assert.Equal(t, user, fallback)
	require.Len(t, calls, 2)
	_, amount, err := chain.UnpackApprove(calls[0].CallData)
	require.NoError(t, err)
	assert.Equal(t, "10000000", amount.String())
}

func TestRun_ActionFailureIsReportedNotFatal(t *testing.T) {
	engine := &scriptedEngine{script: successScript(false)}
	orch := newTestOrchestrator(t, &countingGenerator{}, engine)

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Steps[bridge.StepFill].Succeeded)
	assert.False(t, outcome.ActionSuccess)
}

func TestRun_InsufficientBalance(t *testing.T) {
	gen := &countingGenerator{}
	engine := &scriptedEngine{}
	orch := newTestOrchestrator(t, gen, engine, func(o *Options) {
		o.Balances = &fakeBalances{balance: big.NewInt(2_500_000)}
	})

	_, err := orch.Run(context.Background())
	assert.True(t, errors.Is(err, chain.ErrInsufficientBalance))
	assert.Equal(t, 0, gen.count(), "no quote work before the balance check passes")
	assert.Equal(t, 0, engine.quoteCalls)
}

func TestRun_StepFailureAborts(t *testing.T) {
	depositErr := errors.New("deposit reverted")
	engine := &scriptedEngine{script: []event{
		ev(bridge.StepApprove, bridge.StatusSuccess),
		{progress: bridge.Progress{Step: bridge.StepDeposit, Status: bridge.StatusFailure, Err: depositErr}},
	}}
	gen := &countingGenerator{}
	orch := newTestOrchestrator(t, gen, engine)

	outcome, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepFailed))
	assert.True(t, errors.Is(err, depositErr))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, bridge.StepDeposit, stepErr.Step)

	assert.Equal(t, context.Canceled, engine.ctxErr, "failure cancels the engine's context")
	assert.True(t, outcome.Steps[bridge.StepDeposit].Failed)
	assert.False(t, outcome.Steps[bridge.StepFill].Succeeded)
	assert.Equal(t, 1, gen.count(), "actions are never updated")
}

func TestRun_SwapTargetChangedAbortsFill(t *testing.T) {
	engine := &scriptedEngine{script: successScript(true)}
	orch := newTestOrchestrator(t, &countingGenerator{switchTarget: true}, engine)

	outcome, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, action.ErrSwapTargetChanged))

	var changed *action.SwapTargetChangedError
	require.True(t, errors.As(err, &changed))
	assert.Equal(t, vault, changed.Captured)
	assert.Equal(t, other, changed.Resolved)

	assert.Empty(t, engine.messages, "no message is handed to the engine")
	assert.False(t, outcome.Steps[bridge.StepFill].Succeeded)
	assert.Empty(t, outcome.MinAmountOut)
}

func TestRun_UpdateTimeout(t *testing.T) {
	engine := &scriptedEngine{script: successScript(true)}
	orch := newTestOrchestrator(t, &countingGenerator{block: true}, engine, func(o *Options) {
		o.UpdateTimeout = 20 * time.Millisecond
	})

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, engine.messages)
}

func TestRun_UpdateExecutesOnce(t *testing.T) {
	script := successScript(true)
	script = append(script[:4], append([]event{resolveEvent(), resolveEvent()}, script[4:]...)...)
	engine := &scriptedEngine{script: script}
	gen := &countingGenerator{}
	orch := newTestOrchestrator(t, gen, engine)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, gen.count())
	require.Len(t, engine.messages, 3)
	assert.Equal(t, engine.messages[0], engine.messages[1])
	assert.Equal(t, engine.messages[0], engine.messages[2])
}

func TestRun_DuplicateAndOutOfOrderNotifications(t *testing.T) {
	engine := &scriptedEngine{script: []event{
		{progress: bridge.Progress{Step: bridge.StepDeposit, Status: bridge.StatusSuccess, TxHash: "0xd1", DepositID: "D"}},
		ev(bridge.StepApprove, bridge.StatusSuccess),
		ev(bridge.StepApprove, bridge.StatusSuccess),
		ev(bridge.StepDeposit, bridge.StatusPending),
		{progress: bridge.Progress{Step: bridge.StepDeposit, Status: bridge.StatusSuccess, DepositID: "D"}},
		resolveEvent(),
		{progress: bridge.Progress{Step: bridge.StepFill, Status: bridge.StatusSuccess, TxHash: "0xf1", ActionSuccess: true}},
		{progress: bridge.Progress{Step: bridge.StepFill, Status: bridge.StatusSuccess, TxHash: "0xf1", ActionSuccess: true}},
	}}
	gen := &countingGenerator{}
	orch := newTestOrchestrator(t, gen, engine)

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, outcome.Complete())
	assert.Equal(t, "D", outcome.DepositID)
	assert.Equal(t, "0xd1", outcome.DepositTx, "a repeat without a hash keeps the recorded one")
	assert.Equal(t, 3, outcome.Steps[bridge.StepDeposit].Notifications)
	assert.Equal(t, 2, outcome.Steps[bridge.StepFill].Notifications)
	assert.Equal(t, 2, gen.count())
}

func TestRun_IncompleteExecution(t *testing.T) {
	engine := &scriptedEngine{script: []event{
		ev(bridge.StepApprove, bridge.StatusSuccess),
		{progress: bridge.Progress{Step: bridge.StepDeposit, Status: bridge.StatusSuccess, DepositID: "D"}},
	}}
	orch := newTestOrchestrator(t, &countingGenerator{}, engine)

	outcome, err := orch.Run(context.Background())
	assert.True(t, errors.Is(err, ErrIncompleteExecution))
	assert.Equal(t, "D", outcome.DepositID)
}

func TestRun_EngineError(t *testing.T) {
	engine := &scriptedEngine{returnErr: errors.New("rpc unavailable")}
	orch := newTestOrchestrator(t, &countingGenerator{}, engine)

	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
	assert.False(t, errors.Is(err, ErrStepFailed))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
