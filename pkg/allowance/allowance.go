// Package allowance checks and grants ERC-20 spending allowances for the swap
// router.
package allowance

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/models"
)

// approveGasLimit is a fixed ceiling for approval transactions. ERC-20
// approve is a storage write plus an event, well under this.
const approveGasLimit = 100_000

// Manager reads allowances and issues max-uint approvals when they fall
// short. The infinite approval is a deliberate policy: one-time gas cost
// instead of a fresh approval per trade. Callers needing exact-amount
// allowances must not use this manager.
type Manager struct {
	backend        blockchain.Backend
	chainID        *big.Int
	gasMultiplier  float64
	confirmTimeout time.Duration
	logger         logger.Logger
}

// NewManager creates an allowance manager for the given chain. gasMultiplier
// buffers live gas price queries; provider hints are used as given.
func NewManager(backend blockchain.Backend, chainID int64, gasMultiplier float64, confirmTimeout time.Duration, log logger.Logger) *Manager {
	if confirmTimeout <= 0 {
		confirmTimeout = blockchain.DefaultConfirmTimeout
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Manager{
		backend:        backend,
		chainID:        big.NewInt(chainID),
		gasMultiplier:  gasMultiplier,
		confirmTimeout: confirmTimeout,
		logger:         log,
	}
}

// EnsureAllowance guarantees spender may move at least required units of
// token from the wallet. It returns (false, nil) when the existing allowance
// already suffices, without any on-chain side effect; (true, nil) after a new
// approval is mined; and an error when the approval cannot be issued or
// reverts on chain.
//
// gasPriceHint, when non-nil, is used instead of a live gas price query.
func (m *Manager) EnsureAllowance(
	ctx context.Context,
	token common.Address,
	spender common.Address,
	required *big.Int,
	wallet *blockchain.EscrowWallet,
	gasPriceHint *big.Int,
) (bool, error) {
	current, err := blockchain.Allowance(ctx, m.backend, token, wallet.Address, spender)
	if err != nil {
		return false, models.NewFailure(models.FailureChain, fmt.Sprintf("failed to read allowance: %v", err))
	}

	if current.Cmp(required) >= 0 {
		m.logger.DebugWithScope(logger.Chain, "allowance sufficient for %s on %s, skipping approval",
			spender.Hex(), token.Hex())
		return false, nil
	}

	m.logger.InfoWithScope(logger.Chain, "allowance %s below required %s, approving max for %s on %s",
		current.String(), required.String(), spender.Hex(), token.Hex())

	data, err := blockchain.PackApprove(spender, blockchain.MaxUint256)
	if err != nil {
		return false, models.NewFailure(models.FailureChain, err.Error())
	}

	gasPrice := gasPriceHint
	if gasPrice == nil {
		gasPrice, err = m.backend.SuggestGasPrice(ctx)
		if err != nil {
			return false, models.NewFailure(models.FailureChain, fmt.Sprintf("failed to get gas price: %v", err))
		}
		gasPrice = blockchain.BufferGasPrice(gasPrice, m.gasMultiplier)
	}

	nonce, err := m.backend.PendingNonceAt(ctx, wallet.Address)
	if err != nil {
		return false, models.NewFailure(models.FailureChain, fmt.Sprintf("failed to get nonce: %v", err))
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), approveGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(m.chainID), wallet.Key())
	if err != nil {
		return false, models.NewFailure(models.FailureChain, fmt.Sprintf("failed to sign approval: %v", err))
	}

	if err := m.backend.SendTransaction(ctx, signed); err != nil {
		return false, models.NewFailure(models.FailureChain, fmt.Sprintf("failed to broadcast approval: %v", err))
	}

	txHash := signed.Hash()
	m.logger.InfoWithScope(logger.Chain, "approval broadcast: %s", txHash.Hex())

	receipt, err := blockchain.WaitMined(ctx, m.backend, txHash, m.confirmTimeout)
	if err != nil {
		return false, models.NewFailure(models.FailureChain, fmt.Sprintf("approval not confirmed: %v", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, models.NewFailure(models.FailureChain,
			fmt.Sprintf("approval reverted on chain (tx %s)", txHash.Hex()))
	}

	m.logger.NoticeWithScope(logger.Chain, "approval mined in block %d (tx %s)",
		receipt.BlockNumber.Uint64(), txHash.Hex())
	return true, nil
}
