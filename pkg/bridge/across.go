package bridge

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"bridge-swap/pkg/chain"
)

const (
	// DefaultStatusPollInterval is how often the fill status is polled
	DefaultStatusPollInterval = 5 * time.Second

	// DefaultFillTimeout bounds the wait for a relayer to fill the deposit
	DefaultFillTimeout = 10 * time.Minute

	// DefaultIntegratorID tags deposits sent by this tool
	DefaultIntegratorID = "0x007e"

	// defaultFillDeadlineOffset is used when the API omits a fill deadline
	defaultFillDeadlineOffset = 6 * time.Hour
)

// integratorDelimiter separates the deposit calldata from the integrator id
var integratorDelimiter = []byte{0x1d, 0xc0, 0xde}

const spokePoolABI = `[
	{"type":"function","name":"depositV3","stateMutability":"payable","inputs":[
		{"name":"depositor","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"inputToken","type":"address"},
		{"name":"outputToken","type":"address"},
		{"name":"inputAmount","type":"uint256"},
		{"name":"outputAmount","type":"uint256"},
		{"name":"destinationChainId","type":"uint256"},
		{"name":"exclusiveRelayer","type":"address"},
		{"name":"quoteTimestamp","type":"uint32"},
		{"name":"fillDeadline","type":"uint32"},
		{"name":"exclusivityDeadline","type":"uint32"},
		{"name":"message","type":"bytes"}
	],"outputs":[]}
]`

var (
	spokePool = mustParseABI(spokePoolABI)

	// deposit id is the second indexed topic of both events
	depositEventTopics = []common.Hash{
		crypto.Keccak256Hash([]byte("V3FundsDeposited(address,address,uint256,uint256,uint256,uint32,uint32,uint32,uint32,address,address,address,bytes)")),
		crypto.Keccak256Hash([]byte("FundsDeposited(bytes32,bytes32,uint256,uint256,uint256,uint256,uint32,uint32,uint32,bytes32,bytes32,bytes32,bytes)")),
	}

	// emitted by the multicall handler when the delivered actions revert
	callsFailedTopic = crypto.Keccak256Hash([]byte("CallsFailed((address,bytes,uint256)[],address)"))
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// OriginChain is what the engine needs from the chain the deposit is sent on
type OriginChain interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Transact(ctx context.Context, signer chain.Signer, to common.Address, data []byte, value *big.Int) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// DestinationChain is what the engine needs from the chain the fill lands on
type DestinationChain interface {
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// AcrossOptions configures an AcrossEngine
type AcrossOptions struct {
	API          *AcrossAPI
	Origin       OriginChain
	Destination  DestinationChain
	IntegratorID string
	PollInterval time.Duration
	FillTimeout  time.Duration
	Log          *logrus.Entry
}

// AcrossEngine quotes and executes deposits through Across spoke pools
type AcrossEngine struct {
	api          *AcrossAPI
	origin       OriginChain
	destination  DestinationChain
	integratorID []byte
	limiter      *rate.Limiter
	fillTimeout  time.Duration
	now          func() time.Time
	log          *logrus.Entry
}

// NewAcrossEngine validates opts. Origin and Destination may be nil for an
// engine that only quotes and reports status.
func NewAcrossEngine(opts AcrossOptions) (*AcrossEngine, error) {
	if opts.API == nil {
		return nil, errors.New("across API client is required")
	}
	if opts.IntegratorID == "" {
		opts.IntegratorID = DefaultIntegratorID
	}
	integratorID, err := hexutil.Decode(opts.IntegratorID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid integrator id %q", opts.IntegratorID)
	}
	if len(integratorID) != 2 {
		return nil, errors.Errorf("integrator id must be 2 bytes, got %d", len(integratorID))
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultStatusPollInterval
	}
	if opts.FillTimeout <= 0 {
		opts.FillTimeout = DefaultFillTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &AcrossEngine{
		api:          opts.API,
		origin:       opts.Origin,
		destination:  opts.Destination,
		integratorID: integratorID,
		limiter:      rate.NewLimiter(rate.Every(opts.PollInterval), 1),
		fillTimeout:  opts.FillTimeout,
		now:          time.Now,
		log:          opts.Log,
	}, nil
}

// GetQuote prices the deposit of req.InputAmount with req.Message attached
func (e *AcrossEngine) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Route == nil {
		return nil, errors.New("quote request has no route")
	}
	if req.InputAmount == nil || req.InputAmount.Sign() <= 0 {
		return nil, errors.New("input amount must be positive")
	}
	if len(req.Message) == 0 {
		return nil, ErrMessageRequired
	}

	r := req.Route
	fees, err := e.api.SuggestedFees(ctx, FeesRequest{
		InputToken:         r.InputToken().Address,
		OutputToken:        r.SwapTokenIn().Address,
		OriginChainID:      r.Origin().ID,
		DestinationChainID: r.Destination().ID,
		Amount:             req.InputAmount,
		Recipient:          req.Recipient,
		Message:            req.Message,
	})
	if err != nil {
		return nil, err
	}
	if fees.IsAmountTooLow {
		return nil, errors.Wrapf(ErrAmountTooLow, "amount %s", r.FormattedInputAmount())
	}

	output := fees.OutputAmount
	if output == nil {
		output = new(big.Int).Sub(req.InputAmount, fees.Fees.TotalRelay.Total)
	}
	if output.Sign() <= 0 {
		return nil, errors.Wrapf(ErrAmountTooLow, "fees %s exceed amount", fees.Fees.TotalRelay.Total)
	}

	fillDeadline := fees.FillDeadline
	if fillDeadline == 0 {
		fillDeadline = uint32(e.now().Add(defaultFillDeadlineOffset).Unix())
	}
	quoteTimestamp := fees.QuoteTimestamp
	if quoteTimestamp == 0 {
		quoteTimestamp = uint32(e.now().Unix())
	}

	quote := &Quote{
		Deposit: Deposit{
			OriginChainID:       r.Origin().ID,
			DestinationChainID:  r.Destination().ID,
			SpokePool:           fees.SpokePool,
			InputToken:          r.InputToken().Address,
			OutputToken:         r.SwapTokenIn().Address,
			InputAmount:         new(big.Int).Set(req.InputAmount),
			OutputAmount:        output,
			Recipient:           req.Recipient,
			ExclusiveRelayer:    fees.ExclusiveRelayer,
			QuoteTimestamp:      quoteTimestamp,
			FillDeadline:        fillDeadline,
			ExclusivityDeadline: fees.ExclusivityDeadline,
			Message:             common.CopyBytes(req.Message),
		},
		Fees:                fees.Fees,
		ExpectedFillTimeSec: fees.ExpectedFillTimeSec,
	}

	e.log.WithFields(logrus.Fields{
		"input_amount":  quote.Deposit.InputAmount.String(),
		"output_amount": output.String(),
		"relay_fee":     fees.Fees.TotalRelay.Total.String(),
		"spoke_pool":    fees.SpokePool.Hex(),
	}).Debug("bridge quote received")

	return quote, nil
}

// ExecuteQuote runs approve, deposit and fill in order and reports each
// through hooks.Observer. It returns on the first failed step.
func (e *AcrossEngine) ExecuteQuote(ctx context.Context, signer chain.Signer, quote *Quote, hooks Hooks) error {
	if e.origin == nil || e.destination == nil {
		return errors.New("engine has no chain clients configured")
	}
	if quote == nil {
		return errors.New("quote is required")
	}

	notify := func(p Progress) {
		if hooks.Observer != nil {
			hooks.Observer.OnProgress(p)
		}
	}
	fail := func(step Step, err error) error {
		notify(Progress{Step: step, Status: StatusFailure, Err: err})
		return errors.Wrapf(err, "%s step failed", step)
	}
	d := quote.Deposit

	notify(Progress{Step: StepApprove, Status: StatusPending})
	approveTx, err := e.approve(ctx, signer, d)
	if err != nil {
		return fail(StepApprove, err)
	}
	notify(Progress{Step: StepApprove, Status: StatusSuccess, TxHash: approveTx})

	message := []byte(d.Message)
	if hooks.Resolver != nil {
		message, err = hooks.Resolver.ResolveMessage(ctx, new(big.Int).Set(d.OutputAmount))
		if err != nil {
			return fail(StepFill, err)
		}
	}
	if len(message) == 0 {
		return fail(StepFill, ErrMessageRequired)
	}

	notify(Progress{Step: StepDeposit, Status: StatusPending})
	depositTx, depositID, err := e.deposit(ctx, signer, d, message)
	if err != nil {
		return fail(StepDeposit, err)
	}
	notify(Progress{Step: StepDeposit, Status: StatusSuccess, TxHash: depositTx, DepositID: depositID})

	notify(Progress{Step: StepFill, Status: StatusPending, DepositID: depositID})
	fillTx, actionSuccess, err := e.fill(ctx, d, depositID)
	if err != nil {
		return fail(StepFill, err)
	}
	notify(Progress{Step: StepFill, Status: StatusSuccess, TxHash: fillTx, DepositID: depositID, ActionSuccess: actionSuccess})

	return nil
}

// approve returns an empty hash when the allowance already covers the deposit
func (e *AcrossEngine) approve(ctx context.Context, signer chain.Signer, d Deposit) (string, error) {
	allowance, err := e.origin.Allowance(ctx, d.InputToken, signer.Address(), d.SpokePool)
	if err != nil {
		return "", err
	}
	if allowance.Cmp(d.InputAmount) >= 0 {
		e.log.WithField("allowance", allowance.String()).Debug("allowance sufficient, skipping approval")
		return "", nil
	}

	data, err := chain.PackApprove(d.SpokePool, d.InputAmount)
	if err != nil {
		return "", err
	}
	hash, err := e.origin.Transact(ctx, signer, d.InputToken, data, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to send approval")
	}
	e.log.WithFields(logrus.Fields{"step": StepApprove.String(), "tx": hash.Hex()}).Info("approval sent")

	if _, err := e.origin.WaitReceipt(ctx, hash); err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (e *AcrossEngine) deposit(ctx context.Context, signer chain.Signer, d Deposit, message []byte) (string, string, error) {
	data, err := e.depositCallData(signer.Address(), d, message)
	if err != nil {
		return "", "", err
	}

	hash, err := e.origin.Transact(ctx, signer, d.SpokePool, data, nil)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to send deposit")
	}
	e.log.WithFields(logrus.Fields{"step": StepDeposit.String(), "tx": hash.Hex()}).Info("deposit sent")

	receipt, err := e.origin.WaitReceipt(ctx, hash)
	if err != nil {
		return "", "", err
	}
	depositID, err := DepositIDFromReceipt(receipt, d.SpokePool)
	if err != nil {
		return "", "", err
	}
	return hash.Hex(), depositID, nil
}

func (e *AcrossEngine) depositCallData(depositor common.Address, d Deposit, message []byte) ([]byte, error) {
	data, err := spokePool.Pack("depositV3",
		depositor,
		d.Recipient,
		d.InputToken,
		d.OutputToken,
		d.InputAmount,
		d.OutputAmount,
		big.NewInt(d.DestinationChainID),
		d.ExclusiveRelayer,
		d.QuoteTimestamp,
		d.FillDeadline,
		d.ExclusivityDeadline,
		message,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode deposit")
	}

	tagged := make([]byte, 0, len(data)+len(integratorDelimiter)+len(e.integratorID))
	tagged = append(tagged, data...)
	tagged = append(tagged, integratorDelimiter...)
	return append(tagged, e.integratorID...), nil
}

// fill waits for a relayer and reports whether the handler ran the actions
func (e *AcrossEngine) fill(ctx context.Context, d Deposit, depositID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.fillTimeout)
	defer cancel()

	log := e.log.WithFields(logrus.Fields{"step": StepFill.String(), "deposit_id": depositID})
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", false, errors.Wrap(err, "stopped waiting for fill")
		}

		status, err := e.api.DepositStatus(ctx, d.OriginChainID, depositID)
		if err != nil {
			// the API does not know a deposit until it has been indexed
			log.WithError(err).Debug("deposit status not available yet")
			continue
		}

		switch status.Status {
		case "filled":
			raw, err := hexutil.Decode(status.FillTxHash)
			if err != nil || len(raw) != common.HashLength {
				return "", false, errors.Errorf("filled deposit has invalid fill tx %q", status.FillTxHash)
			}
			fillTx := common.BytesToHash(raw)
			receipt, err := e.destination.Receipt(ctx, fillTx)
			if err != nil {
				return "", false, err
			}
			actionSuccess := !CallsFailed(receipt, d.Recipient)
			log.WithFields(logrus.Fields{"tx": fillTx.Hex(), "action_success": actionSuccess}).Info("deposit filled")
			return fillTx.Hex(), actionSuccess, nil
		case "expired", "refunded":
			return "", false, errors.Wrapf(ErrDepositExpired, "deposit %s is %s", depositID, status.Status)
		default:
			log.WithField("status", status.Status).Debug("waiting for fill")
		}
	}
}

// DepositStatus reports the bridge's view of a deposit
func (e *AcrossEngine) DepositStatus(ctx context.Context, originChainID int64, depositID string) (*DepositStatus, error) {
	return e.api.DepositStatus(ctx, originChainID, depositID)
}

// DepositIDFromReceipt finds the deposit event emitted by the spoke pool
func DepositIDFromReceipt(receipt *types.Receipt, pool common.Address) (string, error) {
	for _, l := range receipt.Logs {
		if l.Address != pool || len(l.Topics) < 3 {
			continue
		}
		for _, topic := range depositEventTopics {
			if l.Topics[0] == topic {
				return new(big.Int).SetBytes(l.Topics[2].Bytes()).String(), nil
			}
		}
	}
	return "", errors.Errorf("no deposit event from %s in tx %s", pool.Hex(), receipt.TxHash.Hex())
}

// CallsFailed reports whether handler emitted CallsFailed in receipt
func CallsFailed(receipt *types.Receipt, handler common.Address) bool {
	for _, l := range receipt.Logs {
		if l.Address == handler && len(l.Topics) > 0 && l.Topics[0] == callsFailedTopic {
			return true
		}
	}
	return false
}
