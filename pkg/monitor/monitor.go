// Package monitor polls escrow wallets for funding and drives funded jobs
// through swap execution to a terminal record status.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/circuitbreaker"
	"github.com/operari-hq/acp-trader/pkg/executor"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/metrics"
	"github.com/operari-hq/acp-trader/pkg/models"
	"github.com/operari-hq/acp-trader/pkg/store"
)

const (
	// DefaultPollInterval is the pause between scans.
	DefaultPollInterval = 15 * time.Second
	// DefaultErrorInterval is the longer pause taken after a scan error.
	DefaultErrorInterval = 30 * time.Second
)

// SwapExecutor runs the swap pipeline for one funded record.
type SwapExecutor interface {
	Execute(ctx context.Context, trade *store.TradeDetails, wallet *blockchain.EscrowWallet) (*executor.Outcome, error)
}

// DeliveryFunc reports a terminal outcome back to the negotiation transport.
// Delivery is best effort: the durable record status is written first, and a
// failed delivery is logged and counted, never retried here.
type DeliveryFunc func(ctx context.Context, jobID string, payload *models.DeliveryPayload) error

// Monitor is a single-goroutine polling loop over awaiting-funds records.
// Exactly one instance must run against a given store; the record status is
// the only execution guard.
type Monitor struct {
	store         *store.Store
	backend       blockchain.Backend
	executor      SwapExecutor
	breaker       *circuitbreaker.CircuitBreaker
	deliver       DeliveryFunc
	pollInterval  time.Duration
	errorInterval time.Duration
	logger        logger.Logger
}

// New creates a monitor. deliver may be nil when no transport callback is
// wired (the record status is still written).
func New(
	st *store.Store,
	backend blockchain.Backend,
	exec SwapExecutor,
	breaker *circuitbreaker.CircuitBreaker,
	deliver DeliveryFunc,
	log logger.Logger,
) *Monitor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Monitor{
		store:         st,
		backend:       backend,
		executor:      exec,
		breaker:       breaker,
		deliver:       deliver,
		pollInterval:  DefaultPollInterval,
		errorInterval: DefaultErrorInterval,
		logger:        log,
	}
}

// SetIntervals overrides the poll cadence, for tests and tuning.
func (m *Monitor) SetIntervals(poll, onError time.Duration) {
	if poll > 0 {
		m.pollInterval = poll
	}
	if onError > 0 {
		m.errorInterval = onError
	}
}

// Start runs the polling loop until the context is cancelled. Scan errors
// slow the loop down instead of stopping it.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.InfoWithScope(logger.Monitor, "funding monitor started (poll every %s)", m.pollInterval)

	for {
		interval := m.pollInterval
		if err := m.Scan(ctx); err != nil {
			m.logger.ErrorWithScope(logger.Monitor, "scan failed: %v", err)
			interval = m.errorInterval
		}

		select {
		case <-ctx.Done():
			m.logger.InfoWithScope(logger.Monitor, "funding monitor stopped")
			return
		case <-time.After(interval):
		}
	}
}

// Scan walks all awaiting-funds records once. A failing record is logged and
// the scan moves on; only a store-level listing failure aborts the pass.
func (m *Monitor) Scan(ctx context.Context) error {
	records, err := m.store.ListAwaiting()
	if err != nil {
		return fmt.Errorf("failed to list awaiting records: %v", err)
	}
	metrics.AwaitingFunds.Set(float64(len(records)))

	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.processRecord(ctx, rec); err != nil {
			m.logger.ErrorWithScope(logger.Monitor, "job %s: %v", rec.JobID, err)
		}
	}
	return nil
}

// processRecord checks one escrow wallet and executes the swap when funds
// have arrived. The terminal status write happens exactly once per record:
// either completed with the outcome or failed with the error payload.
func (m *Monitor) processRecord(ctx context.Context, rec *store.JobRecord) error {
	wallet, err := blockchain.LoadEscrowWallet(rec.EscrowKey)
	if err != nil {
		// Unusable key material: the record can never execute.
		failure := models.NewFailure(models.FailureValidation, "escrow key is unusable")
		if markErr := m.store.MarkFailed(rec.JobID, failure); markErr != nil {
			return markErr
		}
		m.reportDelivery(ctx, rec.JobID, failureDelivery(failure))
		return fmt.Errorf("unusable escrow key: %v", err)
	}

	balance, err := m.backend.BalanceAt(ctx, wallet.Address, nil)
	if err != nil {
		metrics.FundingPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("balance check failed: %v", err)
	}

	if balance.Sign() <= 0 {
		metrics.FundingPolls.WithLabelValues("empty").Inc()
		return nil
	}
	metrics.FundingPolls.WithLabelValues("funded").Inc()

	if m.breaker != nil && m.breaker.IsOpen() {
		// Leave the record awaiting; it will be retried once the
		// breaker closes.
		m.logger.NoticeWithScope(logger.Monitor, "job %s funded but breaker is open, deferring", rec.JobID)
		return nil
	}

	m.logger.InfoWithScope(logger.Monitor, "job %s funded with %s wei, executing swap", rec.JobID, balance.String())

	started := time.Now()
	outcome, err := m.executor.Execute(ctx, &rec.Trade, wallet)
	if err != nil {
		failure := models.AsFailure(err, models.FailureChain)
		metrics.SwapsExecuted.WithLabelValues("failed").Inc()
		if m.breaker != nil && failure.Kind == models.FailureChain {
			m.breaker.RecordFailure()
		}
		if markErr := m.store.MarkFailed(rec.JobID, failure); markErr != nil {
			return fmt.Errorf("swap failed (%v) and record not finalized: %v", failure, markErr)
		}
		m.reportDelivery(ctx, rec.JobID, failureDelivery(failure))
		return fmt.Errorf("swap failed: %v", failure)
	}

	metrics.SwapsExecuted.WithLabelValues("completed").Inc()
	metrics.SwapDuration.Observe(time.Since(started).Seconds())
	metrics.GasUsed.Observe(float64(outcome.GasUsed))
	if outcome.Approved {
		metrics.ApprovalsIssued.Inc()
	}
	if m.breaker != nil {
		m.breaker.RecordSuccess()
	}

	if err := m.store.MarkCompleted(rec.JobID, outcome); err != nil {
		return fmt.Errorf("swap succeeded (tx %s) but record not finalized: %v", outcome.TxHash, err)
	}

	m.reportDelivery(ctx, rec.JobID, &models.DeliveryPayload{
		Status:          "SUCCESS",
		Message:         fmt.Sprintf("swap executed, gas used %d", outcome.GasUsed),
		TransactionHash: outcome.TxHash,
		Metadata: map[string]string{
			"sellToken":  outcome.SellToken,
			"buyToken":   outcome.BuyToken,
			"sellAmount": outcome.SellAmount,
		},
	})
	return nil
}

func (m *Monitor) reportDelivery(ctx context.Context, jobID string, payload *models.DeliveryPayload) {
	if m.deliver == nil {
		return
	}
	if err := m.deliver(ctx, jobID, payload); err != nil {
		metrics.DeliveryFailures.Inc()
		m.logger.ErrorWithScope(logger.Monitor, "job %s: delivery callback failed: %v", jobID, err)
	}
}

func failureDelivery(failure *models.Failure) *models.DeliveryPayload {
	return &models.DeliveryPayload{
		Status:  "FAILURE",
		Error:   string(failure.Kind),
		Message: failure.Message,
	}
}
