package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultConfirmTimeout bounds how long a broadcast transaction is awaited
// before being classified as failed. Expiry is a failure, never a hang; the
// transaction itself cannot be retracted once sent.
const DefaultConfirmTimeout = 300 * time.Second

const receiptPollInterval = 2 * time.Second

// ErrConfirmTimeout is returned when a transaction is not mined within the
// confirmation window.
var ErrConfirmTimeout = errors.New("transaction confirmation timed out")

// WaitMined polls for the receipt of txHash until it appears, the timeout
// elapses, or the context is cancelled.
func WaitMined(ctx context.Context, backend Backend, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		// A NotFound error means not mined yet; other RPC errors are
		// treated as transient and retried until the deadline.
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s (tx %s)", ErrConfirmTimeout, timeout, txHash.Hex())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
