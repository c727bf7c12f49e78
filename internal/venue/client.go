// Package venue adapts the on-chain yield-tokenization venue: the market
// descriptor reads done at registration time, the ERC-20 custody moves, and
// the two-hop conversion router. A paper implementation backs dev mode and
// tests.
package venue

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptPollInterval is how often submitted transactions are polled for
// inclusion.
const receiptPollInterval = 2 * time.Second

// ClientConfig holds the connection parameters for the venue client.
type ClientConfig struct {
	RPCURL  string
	ChainID int64
	// Router is the venue's conversion router contract.
	Router common.Address
	// OperatorKey signs custody and conversion transactions; the derived
	// address is the custody wallet holding all deposited balances.
	OperatorKey *ecdsa.PrivateKey
	// TxTimeout bounds the wait for a single transaction to be mined.
	TxTimeout time.Duration
}

// Client wraps an Ethereum JSON-RPC connection together with the operator
// wallet. Descriptor, Custody, and Router all share one Client so they share
// one nonce sequence.
type Client struct {
	eth       *ethclient.Client
	key       *ecdsa.PrivateKey
	operator  common.Address
	chainID   *big.Int
	router    common.Address
	txTimeout time.Duration
	logger    *slog.Logger

	// nonceMu serializes nonce assignment across concurrent sends.
	nonceMu sync.Mutex
}

// Dial connects to the venue RPC endpoint and verifies the chain ID matches
// the configured one.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.OperatorKey == nil {
		return nil, errors.New("venue: operator key is required")
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("venue: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("venue: chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("venue: endpoint is chain %d, config expects %d", chainID.Int64(), cfg.ChainID)
	}

	timeout := cfg.TxTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		eth:       eth,
		key:       cfg.OperatorKey,
		operator:  ethcrypto.PubkeyToAddress(cfg.OperatorKey.PublicKey),
		chainID:   chainID,
		router:    cfg.Router,
		txTimeout: timeout,
		logger:    logger.With(slog.String("component", "venue")),
	}, nil
}

// Operator returns the custody wallet address.
func (c *Client) Operator() common.Address {
	return c.operator
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call executes a read-only contract call from the operator address.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.operator,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("venue: call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// send signs and submits a state-changing transaction from the operator
// wallet and waits for it to be mined. A reverted transaction is an error.
func (c *Client) send(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.operator)
	if err != nil {
		return nil, fmt.Errorf("venue: pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("venue: gas price: %w", err)
	}

	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.operator,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("venue: estimate gas: %w", err)
	}
	// Headroom over the estimate; unused gas is refunded.
	gas += gas / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("venue: sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("venue: send tx: %w", err)
	}

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("venue: tx %s reverted", signed.Hash().Hex())
	}

	c.logger.Debug("transaction mined",
		slog.String("tx", signed.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// waitMined polls for the transaction receipt until it appears or the
// timeout elapses.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("venue: receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("venue: waiting for tx %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// approve grants the spender exactly amount of the given token. Approvals
// are always scoped to the single hop that follows; the vault never leaves
// a standing allowance with the venue.
func (c *Client) approve(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	data := calldata(selApprove, encodeAddress(spender), encodeUint256(amount))
	if _, err := c.send(ctx, token, data); err != nil {
		return fmt.Errorf("venue: approve %s for %s: %w", token.Hex(), spender.Hex(), err)
	}
	return nil
}
