// Package blockchaintest provides a configurable in-memory Backend for tests.
package blockchaintest

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	allowanceSelector = []byte{0xdd, 0x62, 0xed, 0x3e}
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}
)

// FakeBackend implements blockchain.Backend against in-memory state. Sent
// transactions are recorded and immediately get a receipt with the configured
// status, so confirmation waits return on their first poll.
type FakeBackend struct {
	mu sync.Mutex

	Balances   map[common.Address]*big.Int
	Allowances map[string]*big.Int
	Nonces     map[common.Address]uint64
	GasPrice   *big.Int

	SentTxs  []*types.Transaction
	receipts map[common.Hash]*types.Receipt

	// ReceiptStatus is applied to receipts of future sends (success by
	// default).
	ReceiptStatus uint64

	// Error injection, applied per call while non-nil.
	BalanceErr  error
	NonceErr    error
	GasPriceErr error
	CallErr     error
	SendErr     error
	ReceiptErr  error
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Balances:      make(map[common.Address]*big.Int),
		Allowances:    make(map[string]*big.Int),
		Nonces:        make(map[common.Address]uint64),
		GasPrice:      big.NewInt(1_000_000_000),
		receipts:      make(map[common.Hash]*types.Receipt),
		ReceiptStatus: types.ReceiptStatusSuccessful,
	}
}

func allowanceKey(token, owner, spender common.Address) string {
	return fmt.Sprintf("%s|%s|%s", token.Hex(), owner.Hex(), spender.Hex())
}

// SetAllowance seeds the allowance returned for a token/owner/spender triple.
func (f *FakeBackend) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Allowances[allowanceKey(token, owner, spender)] = amount
}

// SetBalance seeds the native balance of an account.
func (f *FakeBackend) SetBalance(account common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[account] = amount
}

// SentCount returns how many transactions have been broadcast.
func (f *FakeBackend) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SentTxs)
}

func (f *FakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if balance, exists := f.Balances[account]; exists {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeBackend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NonceErr != nil {
		return 0, f.NonceErr
	}
	return f.Nonces[account], nil
}

func (f *FakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GasPriceErr != nil {
		return nil, f.GasPriceErr
	}
	return new(big.Int).Set(f.GasPrice), nil
}

func (f *FakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CallErr != nil {
		return nil, f.CallErr
	}
	if call.To == nil || len(call.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}

	selector := call.Data[:4]
	switch {
	case bytes.Equal(selector, allowanceSelector):
		if len(call.Data) != 4+64 {
			return nil, fmt.Errorf("malformed allowance call")
		}
		owner := common.BytesToAddress(call.Data[4+12 : 4+32])
		spender := common.BytesToAddress(call.Data[4+32+12 : 4+64])
		amount := f.Allowances[allowanceKey(*call.To, owner, spender)]
		if amount == nil {
			amount = big.NewInt(0)
		}
		return common.LeftPadBytes(amount.Bytes(), 32), nil
	case bytes.Equal(selector, balanceOfSelector):
		if len(call.Data) != 4+32 {
			return nil, fmt.Errorf("malformed balanceOf call")
		}
		account := common.BytesToAddress(call.Data[4+12 : 4+32])
		amount := f.Balances[account]
		if amount == nil {
			amount = big.NewInt(0)
		}
		return common.LeftPadBytes(amount.Bytes(), 32), nil
	default:
		return nil, fmt.Errorf("unsupported call selector %x", selector)
	}
}

func (f *FakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.SentTxs = append(f.SentTxs, tx)
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      f.ReceiptStatus,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(f.SentTxs))),
		GasUsed:     21_000,
	}
	return nil
}

func (f *FakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	receipt, exists := f.receipts[txHash]
	if !exists {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}
