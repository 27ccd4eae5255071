// Package executor drives a single swap from trade details to a mined
// transaction: resolve, quote, approve if needed, build, sign, broadcast,
// confirm.
package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/metrics"
	"github.com/operari-hq/acp-trader/pkg/models"
	"github.com/operari-hq/acp-trader/pkg/quote"
	"github.com/operari-hq/acp-trader/pkg/registry"
	"github.com/operari-hq/acp-trader/pkg/store"
)

// DefaultGasLimit is used when the provider bundle carries no usable gas
// figure.
const DefaultGasLimit = 200_000

// Builder obtains swap bundles from the quote/build provider.
type Builder interface {
	Build(ctx context.Context, req quote.BuildRequest) (*quote.BuildResult, error)
}

// Approver grants the router a spending allowance when needed.
type Approver interface {
	EnsureAllowance(ctx context.Context, token, spender common.Address, required *big.Int,
		wallet *blockchain.EscrowWallet, gasPriceHint *big.Int) (bool, error)
}

// Outcome is the result of a successfully mined swap.
type Outcome struct {
	TxHash     string `json:"txHash"`
	GasUsed    uint64 `json:"gasUsed"`
	Approved   bool   `json:"approved"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
}

// Executor runs the swap pipeline. It never retries a broadcast: a failed or
// timed-out transaction is reported as failed, and any retry is a new
// pipeline run with a fresh nonce decided by the caller.
type Executor struct {
	backend        blockchain.Backend
	registry       *registry.Registry
	builder        Builder
	approver       Approver
	chainID        *big.Int
	gasMultiplier  float64
	confirmTimeout time.Duration
	logger         logger.Logger
}

func New(
	backend blockchain.Backend,
	reg *registry.Registry,
	builder Builder,
	approver Approver,
	chainID int64,
	gasMultiplier float64,
	confirmTimeout time.Duration,
	log logger.Logger,
) *Executor {
	if confirmTimeout <= 0 {
		confirmTimeout = blockchain.DefaultConfirmTimeout
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Executor{
		backend:        backend,
		registry:       reg,
		builder:        builder,
		approver:       approver,
		chainID:        big.NewInt(chainID),
		gasMultiplier:  gasMultiplier,
		confirmTimeout: confirmTimeout,
		logger:         log,
	}
}

// Resolve turns a validated trade request into persisted trade details with
// both token legs resolved to addresses and decimals.
func (e *Executor) Resolve(req *models.TradeRequest) (*store.TradeDetails, error) {
	sell, err := e.registry.Resolve(req.FromToken)
	if err != nil {
		return nil, err
	}
	buy, err := e.registry.Resolve(req.ToToken)
	if err != nil {
		return nil, err
	}
	return &store.TradeDetails{
		SellToken:    sell.Address.Hex(),
		SellDecimals: sell.Decimals,
		BuyToken:     buy.Address.Hex(),
		BuyDecimals:  buy.Decimals,
		Amount:       req.Amount,
		SlippageBps:  req.SlippageBps,
		Recipient:    req.Recipient,
		Chain:        req.Chain,
	}, nil
}

// Execute runs the pipeline for already-resolved trade details, signing with
// the given escrow wallet. The approval leg, when required, must succeed
// before the swap leg is attempted: a swap without allowance deterministically
// reverts and wastes gas.
func (e *Executor) Execute(ctx context.Context, trade *store.TradeDetails, wallet *blockchain.EscrowWallet) (*Outcome, error) {
	// The provider builds calldata and the approval decision against the
	// signing wallet. Routing the output to another address goes through
	// the dedicated recipient field; substituting it for the wallet would
	// produce a bundle inconsistent with the wallet that signs and approves.
	bundle, err := e.builder.Build(ctx, quote.BuildRequest{
		SellToken:         trade.SellToken,
		BuyToken:          trade.BuyToken,
		SellAmount:        trade.Amount,
		WalletAddress:     wallet.Address.Hex(),
		RecipientAddress:  trade.Recipient,
		SellTokenDecimals: trade.SellDecimals,
		Slippage:          float64(trade.SlippageBps) / 100.0,
	})
	if err != nil {
		return nil, models.AsFailure(err, models.FailureProvider)
	}

	approved := false
	if bundle.NeedsApproval {
		approved, err = e.runApproval(ctx, trade, wallet, bundle)
		if err != nil {
			// Short-circuit: the swap leg is never attempted after a
			// failed approval.
			return nil, models.AsFailure(err, models.FailureChain)
		}
	}

	receipt, txHash, err := e.sendSwap(ctx, wallet, &bundle.TransactionData)
	if err != nil {
		return nil, models.AsFailure(err, models.FailureChain)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, models.NewFailure(models.FailureChain,
			fmt.Sprintf("swap reverted on chain (tx %s)", txHash))
	}

	e.logger.NoticeWithScope(logger.Chain, "swap mined in block %d, gas used %d (tx %s)",
		receipt.BlockNumber.Uint64(), receipt.GasUsed, txHash)

	return &Outcome{
		TxHash:     txHash,
		GasUsed:    receipt.GasUsed,
		Approved:   approved,
		SellToken:  bundle.SellToken,
		BuyToken:   bundle.BuyToken,
		SellAmount: bundle.SellAmount,
	}, nil
}

// runApproval grants the router an allowance for the sell leg. The required
// amount is the sell amount in base units; the approver itself decides
// whether an on-chain approval is actually needed.
func (e *Executor) runApproval(ctx context.Context, trade *store.TradeDetails, wallet *blockchain.EscrowWallet, bundle *quote.BuildResult) (bool, error) {
	requiredStr, err := registry.ToBaseUnits(trade.Amount, trade.SellDecimals)
	if err != nil {
		return false, err
	}
	required, ok := new(big.Int).SetString(requiredStr, 10)
	if !ok {
		return false, models.NewFailure(models.FailureValidation,
			fmt.Sprintf("unparsable sell amount %q", trade.Amount))
	}

	token := common.HexToAddress(trade.SellToken)
	spender := common.HexToAddress(bundle.TransactionData.To)

	var gasPriceHint *big.Int
	if bundle.ApprovalData != nil {
		gasPriceHint = gweiToWei(bundle.ApprovalData.GasPriceGwei)
	}

	return e.approver.EnsureAllowance(ctx, token, spender, required, wallet, gasPriceHint)
}

// sendSwap signs and broadcasts the provider-built swap transaction and waits
// for its receipt.
func (e *Executor) sendSwap(ctx context.Context, wallet *blockchain.EscrowWallet, txData *quote.TxData) (*types.Receipt, string, error) {
	if !common.IsHexAddress(txData.To) {
		return nil, "", models.NewFailure(models.FailureProvider,
			fmt.Sprintf("provider sent invalid recipient %q", txData.To))
	}
	to := common.HexToAddress(txData.To)

	data, err := hex.DecodeString(strings.TrimPrefix(txData.Data, "0x"))
	if err != nil {
		return nil, "", models.NewFailure(models.FailureProvider,
			fmt.Sprintf("provider sent invalid calldata: %v", err))
	}

	value := big.NewInt(0)
	if txData.Value != "" {
		if value, err = parseBigInt(txData.Value); err != nil {
			return nil, "", models.NewFailure(models.FailureProvider,
				fmt.Sprintf("provider sent invalid value %q", txData.Value))
		}
	}

	gasLimit := uint64(DefaultGasLimit)
	if txData.Gas != "" {
		if parsed, err := strconv.ParseUint(txData.Gas, 10, 64); err == nil && parsed > 0 {
			gasLimit = parsed
		}
	}

	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get gas price: %v", err)
	}
	gasPrice = blockchain.BufferGasPrice(gasPrice, e.gasMultiplier)
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(gasPrice), big.NewFloat(1e9)).Float64()
	metrics.GasPrice.Set(gwei)

	// The nonce is fetched fresh for every attempt; a stale nonce reused
	// across attempts risks duplicate submission.
	nonce, err := e.backend.PendingNonceAt(ctx, wallet.Address)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get nonce: %v", err)
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(e.chainID), wallet.Key())
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign swap: %v", err)
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, "", fmt.Errorf("failed to broadcast swap: %v", err)
	}

	txHash := signed.Hash()
	e.logger.InfoWithScope(logger.Chain, "swap broadcast: %s", txHash.Hex())

	receipt, err := blockchain.WaitMined(ctx, e.backend, txHash, e.confirmTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("swap not confirmed: %v", err)
	}
	return receipt, txHash.Hex(), nil
}

func parseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	value, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return value, nil
}

// gweiToWei converts a decimal gwei string to wei, returning nil when the
// input is absent or unparsable so callers fall back to a live gas price.
func gweiToWei(gwei string) *big.Int {
	gwei = strings.TrimSpace(gwei)
	if gwei == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(gwei, 64)
	if err != nil || parsed <= 0 {
		return nil
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(parsed), big.NewFloat(1e9)).Int(nil)
	if wei.Sign() <= 0 {
		return nil
	}
	return wei
}
