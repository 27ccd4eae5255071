package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/executor"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/metrics"
	"github.com/operari-hq/acp-trader/pkg/models"
	"github.com/operari-hq/acp-trader/pkg/store"
)

// Resolver turns a validated trade request into resolved trade details.
type Resolver interface {
	Resolve(req *models.TradeRequest) (*store.TradeDetails, error)
}

// SwapRunner executes a resolved trade with a signing wallet.
type SwapRunner interface {
	Execute(ctx context.Context, trade *store.TradeDetails, wallet *blockchain.EscrowWallet) (*executor.Outcome, error)
}

// SellerConfig carries the seller's deployment knobs.
type SellerConfig struct {
	Mode CustodyMode
	// ReportingEndpoint is advertised to the buyer in fund-request
	// payloads so swap progress can be polled out of band. Optional.
	ReportingEndpoint string
	// TestWallet, when set, is reused as the escrow wallet for every job
	// instead of generating a fresh keypair. Test deployments only.
	TestWallet *blockchain.EscrowWallet
	// ServiceWallet signs swaps in direct-pay mode, where no escrow
	// wallet exists.
	ServiceWallet *blockchain.EscrowWallet
}

// Seller reacts to inbound phase changes on the sell side: it accepts or
// rejects requests, registers escrow records for the funding monitor, and in
// direct-pay mode executes the swap synchronously at the Transaction phase.
type Seller struct {
	config   SellerConfig
	store    *store.Store
	resolver Resolver
	runner   SwapRunner
	logger   logger.Logger
}

func NewSeller(config SellerConfig, st *store.Store, resolver Resolver, runner SwapRunner, log logger.Logger) *Seller {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Seller{
		config:   config,
		store:    st,
		resolver: resolver,
		runner:   runner,
		logger:   log,
	}
}

// OnPhaseChange handles one phase notification. Errors never escape to the
// transport: they are converted into rejections or error deliveries, and a
// missing prerequisite leaves the job pending for the next notification.
func (s *Seller) OnPhaseChange(ctx context.Context, handle JobHandle) {
	job := handle.Job()
	metrics.JobsByPhase.WithLabelValues("seller", job.Phase.String()).Inc()
	s.logger.InfoWithScope(logger.Seller, "job %s: phase %s with %d memos", job.ID, job.Phase, len(job.Memos))

	switch job.Phase {
	case models.PhaseRequest:
		s.handleRequest(ctx, handle, job)
	case models.PhaseTransaction:
		s.handleTransaction(ctx, handle, job)
	case models.PhaseCompleted, models.PhaseRejected:
		s.logger.InfoWithScope(logger.Seller, "job %s reached terminal phase %s", job.ID, job.Phase)
	default:
		// Negotiation and Evaluation are buyer-driven.
	}
}

// handleRequest decides accept/reject. Accepting in escrow mode creates the
// job record and advertises the designated wallet in the response payload;
// the record's existence makes duplicate Request memos a no-op.
func (s *Seller) handleRequest(ctx context.Context, handle JobHandle, job *models.Job) {
	if job.FirstMemoWithNextPhase(models.PhaseNegotiation) == nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: no negotiation-transition memo yet, leaving pending", job.ID)
		metrics.HandlerErrors.WithLabelValues("seller", string(models.FailureMissingData)).Inc()
		return
	}

	tradeMemo := job.TradeRequestMemo()
	if tradeMemo == nil {
		s.reject(ctx, handle, job, models.NewFailure(models.FailureMissingData,
			"no parsable trade request in the job memos"))
		return
	}

	trade, err := models.ParseTradeRequest([]byte(tradeMemo.Content))
	if err != nil {
		s.reject(ctx, handle, job, models.AsFailure(err, models.FailureValidation))
		return
	}

	if s.config.Mode != ModeEscrow {
		s.logger.InfoWithScope(logger.Seller, "job %s: accepting %s", job.ID, trade.Summary())
		if err := handle.Respond(ctx, true, nil); err != nil {
			s.logger.ErrorWithScope(logger.Seller, "job %s: accept failed: %v", job.ID, err)
		}
		return
	}

	wallet, err := s.escrowWalletFor(job.ID, trade)
	if err != nil {
		s.reject(ctx, handle, job, models.AsFailure(err, models.FailureValidation))
		return
	}

	payload, err := models.WrapPayload(models.PayloadFundRequest, models.FundRequestPayload{
		WalletAddress:     wallet,
		ReportingEndpoint: s.config.ReportingEndpoint,
	})
	if err != nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: payload encoding failed: %v", job.ID, err)
		return
	}

	s.logger.InfoWithScope(logger.Seller, "job %s: accepting %s, designated wallet %s",
		job.ID, trade.Summary(), wallet)
	if err := handle.Respond(ctx, true, payload); err != nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: accept failed: %v", job.ID, err)
	}
}

// escrowWalletFor returns the designated wallet address for a job, creating
// and persisting the record on first sight. A duplicate Request memo reuses
// the already-persisted wallet rather than generating a second one.
func (s *Seller) escrowWalletFor(jobID string, trade *models.TradeRequest) (string, error) {
	if rec, err := s.store.Get(jobID); err == nil {
		return rec.EscrowAddress, nil
	}

	details, err := s.resolver.Resolve(trade)
	if err != nil {
		return "", err
	}

	wallet := s.config.TestWallet
	if wallet == nil {
		wallet, err = blockchain.GenerateEscrowWallet()
		if err != nil {
			return "", fmt.Errorf("failed to create escrow wallet: %v", err)
		}
	}

	rec := &store.JobRecord{
		JobID:         jobID,
		EscrowAddress: wallet.Address.Hex(),
		EscrowKey:     wallet.KeyHex(),
		Trade:         *details,
	}
	if err := s.store.Create(rec); err != nil {
		// Lost a race with a duplicate notification; the persisted
		// record wins.
		if existing, getErr := s.store.Get(jobID); getErr == nil {
			return existing.EscrowAddress, nil
		}
		return "", err
	}
	return rec.EscrowAddress, nil
}

// handleTransaction either executes the swap now (direct mode) or confirms
// the escrow record is registered and defers to the funding monitor.
func (s *Seller) handleTransaction(ctx context.Context, handle JobHandle, job *models.Job) {
	if s.config.Mode == ModeEscrow {
		if !s.store.Exists(job.ID) {
			s.deliverError(ctx, handle, job, models.NewFailure(models.FailureMissingData,
				"no escrow record for this job; the request was never accepted here"))
			return
		}
		s.logger.InfoWithScope(logger.Seller, "job %s: awaiting escrow funding, delivery deferred to monitor", job.ID)
		return
	}

	s.handleDirectSwap(ctx, handle, job)
}

// handleDirectSwap runs the swap synchronously from the service wallet. The
// job record doubles as the execution guard: it is persisted before the
// pipeline runs, so a duplicate Transaction notification finds the record and
// re-delivers the stored outcome instead of broadcasting a second swap.
func (s *Seller) handleDirectSwap(ctx context.Context, handle JobHandle, job *models.Job) {
	if rec, err := s.store.Get(job.ID); err == nil {
		s.redeliverOutcome(ctx, handle, job, rec)
		return
	}

	tradeMemo := job.TradeRequestMemo()
	if tradeMemo == nil {
		s.deliverError(ctx, handle, job, models.NewFailure(models.FailureMissingData,
			"original trade request not found in memos"))
		return
	}

	trade, err := models.ParseTradeRequest([]byte(tradeMemo.Content))
	if err != nil {
		s.deliverError(ctx, handle, job, models.AsFailure(err, models.FailureValidation))
		return
	}

	details, err := s.resolver.Resolve(trade)
	if err != nil {
		s.deliverError(ctx, handle, job, models.AsFailure(err, models.FailureUnknownToken))
		return
	}

	if s.config.ServiceWallet == nil {
		s.deliverError(ctx, handle, job, models.NewFailure(models.FailureValidation,
			"direct mode requires a configured service wallet"))
		return
	}

	rec := &store.JobRecord{
		JobID:         job.ID,
		EscrowAddress: s.config.ServiceWallet.Address.Hex(),
		Trade:         *details,
	}
	if err := s.store.Create(rec); err != nil {
		// Lost a race with a duplicate notification; that run owns the
		// pipeline.
		if existing, getErr := s.store.Get(job.ID); getErr == nil {
			s.redeliverOutcome(ctx, handle, job, existing)
			return
		}
		s.logger.ErrorWithScope(logger.Seller, "job %s: record not persisted, leaving pending: %v", job.ID, err)
		return
	}

	outcome, err := s.runner.Execute(ctx, details, s.config.ServiceWallet)
	if err != nil {
		failure := models.AsFailure(err, models.FailureChain)
		if markErr := s.store.MarkFailed(job.ID, failure); markErr != nil {
			s.logger.ErrorWithScope(logger.Seller, "job %s: failed swap not finalized: %v", job.ID, markErr)
		}
		s.deliverError(ctx, handle, job, failure)
		return
	}
	if err := s.store.MarkCompleted(job.ID, outcome); err != nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: completed swap not finalized: %v", job.ID, err)
	}
	s.deliverSuccess(ctx, handle, job, outcome, trade.Summary())
}

// redeliverOutcome answers a duplicate Transaction notification from the
// persisted record. A record still awaiting means an earlier attempt crashed
// between broadcast and finalization; re-running it could spend twice, so the
// job stays pending for manual resolution.
func (s *Seller) redeliverOutcome(ctx context.Context, handle JobHandle, job *models.Job, rec *store.JobRecord) {
	switch rec.Status {
	case store.StatusCompleted:
		var outcome executor.Outcome
		if err := json.Unmarshal(rec.Result, &outcome); err != nil {
			s.logger.ErrorWithScope(logger.Seller, "job %s: stored outcome unreadable: %v", job.ID, err)
			return
		}
		s.logger.InfoWithScope(logger.Seller, "job %s: swap already executed (tx %s), re-delivering", job.ID, outcome.TxHash)
		s.deliverSuccess(ctx, handle, job, &outcome, "swap already executed")
	case store.StatusFailed:
		var failure models.Failure
		if err := json.Unmarshal(rec.Result, &failure); err != nil || failure.Kind == "" {
			s.logger.ErrorWithScope(logger.Seller, "job %s: stored failure unreadable", job.ID)
			return
		}
		s.deliverError(ctx, handle, job, &failure)
	default:
		s.logger.NoticeWithScope(logger.Seller, "job %s: an earlier swap attempt is unresolved, leaving pending", job.ID)
	}
}

func (s *Seller) deliverSuccess(ctx context.Context, handle JobHandle, job *models.Job, outcome *executor.Outcome, message string) {
	payload, err := models.WrapPayload(models.PayloadDelivery, models.DeliveryPayload{
		Status:          "SUCCESS",
		Message:         message,
		TransactionHash: outcome.TxHash,
		Metadata: map[string]string{
			"sellToken":  outcome.SellToken,
			"buyToken":   outcome.BuyToken,
			"sellAmount": outcome.SellAmount,
		},
	})
	if err != nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: payload encoding failed: %v", job.ID, err)
		return
	}
	if err := handle.Deliver(ctx, payload); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.ErrorWithScope(logger.Seller, "job %s: delivery failed: %v", job.ID, err)
	}
}

func (s *Seller) reject(ctx context.Context, handle JobHandle, job *models.Job, failure *models.Failure) {
	metrics.HandlerErrors.WithLabelValues("seller", string(failure.Kind)).Inc()
	s.logger.ErrorWithScope(logger.Seller, "job %s: rejecting: %v", job.ID, failure)

	payload, err := models.WrapPayload(models.PayloadNegotiation, models.NegotiationPayload{
		ServiceRequirement: failure.Message,
	})
	if err != nil {
		payload = nil
	}
	if err := handle.Respond(ctx, false, payload); err != nil {
		s.logger.ErrorWithScope(logger.Seller, "job %s: reject failed: %v", job.ID, err)
	}
}

func (s *Seller) deliverError(ctx context.Context, handle JobHandle, job *models.Job, failure *models.Failure) {
	metrics.HandlerErrors.WithLabelValues("seller", string(failure.Kind)).Inc()
	s.logger.ErrorWithScope(logger.Seller, "job %s: delivering error: %v", job.ID, failure)

	payload, err := models.WrapPayload(models.PayloadDelivery, models.DeliveryPayload{
		Status:  "FAILURE",
		Error:   string(failure.Kind),
		Message: failure.Message,
	})
	if err != nil {
		return
	}
	if err := handle.Deliver(ctx, payload); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.ErrorWithScope(logger.Seller, "job %s: error delivery failed: %v", job.ID, err)
	}
}

// DeliverOutcome is the monitor's delivery callback: it pushes a terminal
// payload for an escrow job back over the transport. The transport lookup is
// provided by the caller since handles are per-notification.
func (s *Seller) DeliverOutcome(ctx context.Context, handle JobHandle, payload *models.DeliveryPayload) error {
	envelope, err := models.WrapPayload(models.PayloadDelivery, payload)
	if err != nil {
		return err
	}
	return handle.Deliver(ctx, envelope)
}
