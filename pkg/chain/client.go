package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultReceiptPollInterval is how often WaitReceipt asks for a receipt
	DefaultReceiptPollInterval = 2 * time.Second

	// gasBufferPercent is added on top of the node's gas estimate
	gasBufferPercent = 120
)

// ErrTxReverted is returned when a mined transaction has a failed status
var ErrTxReverted = errors.New("transaction reverted")

// Backend is the part of ethclient.Client the chain client relies on
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.TransactionSender
	ethereum.TransactionReader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Client reads and writes a single EVM chain
type Client struct {
	backend      Backend
	chainID      *big.Int
	pollInterval time.Duration
	closer       func()
	log          *logrus.Entry
}

// Dial connects to rpcURL and verifies the node serves the expected chain
func Dial(ctx context.Context, rpcURL string, expectedChainID int64, log *logrus.Entry) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.Errorf("RPC URL not configured for chain %d", expectedChainID)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RPC endpoint")
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, errors.Wrap(err, "failed to get chain id")
	}
	if chainID.Int64() != expectedChainID {
		eth.Close()
		return nil, errors.Errorf("RPC endpoint serves chain %s, expected %d", chainID, expectedChainID)
	}

	c := NewClient(eth, chainID, log)
	c.closer = eth.Close
	return c, nil
}

// NewClient wraps an existing backend
func NewClient(backend Backend, chainID *big.Int, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		backend:      backend,
		chainID:      new(big.Int).Set(chainID),
		pollInterval: DefaultReceiptPollInterval,
		log:          log.WithField("chain_id", chainID.String()),
	}
}

// SetPollInterval changes how often receipts are polled
func (c *Client) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		c.pollInterval = interval
	}
}

// ChainID returns the id of the connected chain
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close closes the underlying RPC connection, if the client owns one
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Call executes a read-only contract call against the latest block
func (c *Client) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	res, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errors.Wrap(err, "eth_call failed")
	}
	return res, nil
}

// TokenBalance returns the ERC20 balance of holder in smallest units
func (c *Client) TokenBalance(ctx context.Context, holder, token common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack balanceOf data")
	}
	return c.callUint(ctx, token, data, "balanceOf")
}

// Allowance returns how much spender may transfer from owner
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack allowance data")
	}
	return c.callUint(ctx, token, data, "allowance")
}

func (c *Client) callUint(ctx context.Context, to common.Address, data []byte, method string) (*big.Int, error) {
	res, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}
	if len(res) == 0 {
		return nil, errors.Errorf("empty result from %s call", method)
	}
	return new(big.Int).SetBytes(res), nil
}

// Transact signs and sends a dynamic-fee transaction and returns its hash
func (c *Client) Transact(ctx context.Context, signer Signer, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = big.NewInt(0)
	}
	from := signer.Address()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to estimate gas")
	}
	gas = gas * gasBufferPercent / 100

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get gas tip cap")
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get latest header")
	}
	if head.BaseFee == nil {
		return common.Hash{}, errors.New("chain does not report a base fee")
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.ChainID(),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := signer.SignTx(tx, c.ChainID())
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction")
	}

	c.log.WithFields(logrus.Fields{"tx": signed.Hash().Hex(), "to": to.Hex(), "nonce": nonce}).Debug("transaction sent")
	return signed.Hash(), nil
}

// Receipt returns the receipt of a mined transaction
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get receipt for %s", hash.Hex())
	}
	return receipt, nil
}

// WaitReceipt polls until hash is mined. A reverted transaction returns its
// receipt together with ErrTxReverted.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, errors.Wrapf(ErrTxReverted, "tx %s", hash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			c.log.WithField("tx", hash.Hex()).Error("WaitReceipt: context done")
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
