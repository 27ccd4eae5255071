// Package blockchain owns the chain connection, escrow wallet key handling,
// and the minimal RPC surface the swap pipeline needs.
package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/operari-hq/acp-trader/pkg/logger"
)

// Backend is the narrow RPC surface used by the executor and the funding
// monitor. *ethclient.Client satisfies it; tests substitute fakes.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ChainConfig holds the connection to the deployment's single chain.
type ChainConfig struct {
	ChainID       int64
	Name          string
	RPCURL        string
	Client        *ethclient.Client
	GasMultiplier float64

	logger logger.Logger
}

// NewChainConfig creates an unconnected chain configuration. GasMultiplier
// defaults to 1.1 (10% buffer) when non-positive.
func NewChainConfig(chainID int64, name, rpcURL string, gasMultiplier float64, log logger.Logger) *ChainConfig {
	if gasMultiplier <= 0 {
		gasMultiplier = 1.1
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &ChainConfig{
		ChainID:       chainID,
		Name:          name,
		RPCURL:        rpcURL,
		GasMultiplier: gasMultiplier,
		logger:        log,
	}
}

// Connect dials the RPC endpoint and verifies the remote chain id matches the
// configured one. Signing against the wrong chain id would produce
// transactions the network silently rejects.
func (c *ChainConfig) Connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, c.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s RPC: %v", c.Name, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to query chain id: %v", err)
	}
	if remoteID.Int64() != c.ChainID {
		client.Close()
		return fmt.Errorf("RPC chain id mismatch: configured %d, endpoint reports %s", c.ChainID, remoteID)
	}

	c.Client = client
	c.logger.InfoWithScope(logger.Chain, "connected to %s (chain id %d) at %s", c.Name, c.ChainID, c.RPCURL)
	return nil
}

// Connected reports whether the RPC client is available.
func (c *ChainConfig) Connected() bool {
	return c.Client != nil
}

// BufferGasPrice applies the configured buffer multiplier to a live gas price
// quote. A slightly over-market price keeps transactions from stalling when
// the network price moves between the query and the broadcast. Multipliers
// at or below zero, and exactly one, leave the quote unchanged.
func BufferGasPrice(gasPrice *big.Int, multiplier float64) *big.Int {
	if gasPrice == nil || multiplier <= 0 || multiplier == 1 {
		return gasPrice
	}
	buffered := new(big.Float).Mul(
		new(big.Float).SetInt(gasPrice),
		big.NewFloat(multiplier),
	)
	final := new(big.Int)
	buffered.Int(final)
	return final
}

// GetLatestBlockNumber gets the latest block number from the chain.
func (c *ChainConfig) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	if c.Client == nil {
		return 0, fmt.Errorf("client not connected")
	}
	return c.Client.BlockNumber(ctx)
}
