package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/metrics"
	"github.com/operari-hq/acp-trader/pkg/models"
)

// Buyer reacts to inbound phase changes on the buy side: it settles the
// service fee or transfers trade capital at Negotiation, and judges
// deliveries at Evaluation.
type Buyer struct {
	mode   CustodyMode
	logger logger.Logger

	// settled covers the window between a completed settlement and the
	// transport's confirmation memo landing in the job history. Once the
	// confirmation memo is there, alreadySettled catches duplicates and
	// restarts; this set only has to bridge the gap within one process.
	mu      sync.Mutex
	settled map[string]bool
}

func NewBuyer(mode CustodyMode, log logger.Logger) *Buyer {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Buyer{
		mode:    mode,
		logger:  log,
		settled: make(map[string]bool),
	}
}

// OnPhaseChange handles one phase notification. No error escapes to the
// transport.
func (b *Buyer) OnPhaseChange(ctx context.Context, handle JobHandle) {
	job := handle.Job()
	metrics.JobsByPhase.WithLabelValues("buyer", job.Phase.String()).Inc()
	b.logger.InfoWithScope(logger.Buyer, "job %s: phase %s with %d memos", job.ID, job.Phase, len(job.Memos))

	switch job.Phase {
	case models.PhaseNegotiation:
		b.handleNegotiation(ctx, handle, job)
	case models.PhaseCompleted:
		b.logger.InfoWithScope(logger.Buyer, "job %s completed", job.ID)
	case models.PhaseRejected:
		b.logger.InfoWithScope(logger.Buyer, "job %s rejected", job.ID)
	default:
		// Request and Transaction are seller-driven; Evaluation arrives
		// through OnEvaluate.
	}
}

// handleNegotiation settles once per job: the service fee in direct mode, or
// the trade capital to the seller's designated wallet in escrow mode.
func (b *Buyer) handleNegotiation(ctx context.Context, handle JobHandle, job *models.Job) {
	transition := job.FirstMemoWithNextPhase(models.PhaseTransaction)
	if transition == nil {
		b.logger.DebugWithScope(logger.Buyer, "job %s: no transaction-transition memo yet", job.ID)
		return
	}

	if b.alreadySettled(job) {
		b.logger.DebugWithScope(logger.Buyer, "job %s: settlement already confirmed in memo history", job.ID)
		return
	}

	b.mu.Lock()
	if b.settled[job.ID] {
		b.mu.Unlock()
		b.logger.DebugWithScope(logger.Buyer, "job %s: already settled, ignoring duplicate memo", job.ID)
		return
	}
	b.settled[job.ID] = true
	b.mu.Unlock()

	switch b.mode {
	case ModeEscrow:
		b.transferTradeCapital(ctx, handle, job)
	default:
		b.logger.InfoWithScope(logger.Buyer, "job %s: paying service fee %.6f", job.ID, job.Price)
		if err := handle.Pay(ctx, job.Price); err != nil {
			b.clearSettled(job.ID)
			metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureChain)).Inc()
			b.logger.ErrorWithScope(logger.Buyer, "job %s: payment failed: %v", job.ID, err)
		}
	}
}

// transferTradeCapital finds the seller's fund-request payload and moves the
// trade amount to the designated wallet. A missing or undecodable payload
// leaves the job pending; the seller will not see funds and nothing is lost.
func (b *Buyer) transferTradeCapital(ctx context.Context, handle JobHandle, job *models.Job) {
	var fundRequest *models.FundRequestPayload
	for i := range job.Memos {
		if decoded, ok := decodeEnvelope(&job.Memos[i]).(*models.FundRequestPayload); ok {
			fundRequest = decoded
			break
		}
	}
	if fundRequest == nil || fundRequest.WalletAddress == "" {
		b.clearSettled(job.ID)
		metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureMissingData)).Inc()
		b.logger.ErrorWithScope(logger.Buyer, "job %s: no designated wallet in memos, leaving pending", job.ID)
		return
	}

	tradeMemo := job.TradeRequestMemo()
	if tradeMemo == nil {
		b.clearSettled(job.ID)
		metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureMissingData)).Inc()
		b.logger.ErrorWithScope(logger.Buyer, "job %s: no trade request in memos, leaving pending", job.ID)
		return
	}
	trade, err := models.ParseTradeRequest([]byte(tradeMemo.Content))
	if err != nil {
		b.clearSettled(job.ID)
		metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureValidation)).Inc()
		b.logger.ErrorWithScope(logger.Buyer, "job %s: trade request unparsable: %v", job.ID, err)
		return
	}

	b.logger.InfoWithScope(logger.Buyer, "job %s: transferring %s to designated wallet %s",
		job.ID, trade.Amount, fundRequest.WalletAddress)
	if err := handle.TransferFunds(ctx, trade.Amount, fundRequest.WalletAddress); err != nil {
		b.clearSettled(job.ID)
		metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureChain)).Inc()
		b.logger.ErrorWithScope(logger.Buyer, "job %s: funds transfer failed: %v", job.ID, err)
	}
}

// alreadySettled scans the memo history for the transport's settlement
// confirmation. The history is append-only and survives restarts, so it is
// the durable guard against paying or transferring twice; a fresh process
// with an empty settled set still finds the confirmation here.
func (b *Buyer) alreadySettled(job *models.Job) bool {
	for i := range job.Memos {
		if _, ok := decodeEnvelope(&job.Memos[i]).(*models.SettlementPayload); ok {
			return true
		}
	}
	return false
}

func (b *Buyer) clearSettled(jobID string) {
	b.mu.Lock()
	delete(b.settled, jobID)
	b.mu.Unlock()
}

// OnEvaluate judges the seller's delivery. The verdict is true only for an
// explicit success marker with a transaction hash; anything else, including a
// missing or malformed delivery, evaluates to false. This never panics past
// the handler.
func (b *Buyer) OnEvaluate(ctx context.Context, handle JobHandle) {
	job := handle.Job()
	metrics.JobsByPhase.WithLabelValues("buyer", job.Phase.String()).Inc()

	verdict := false
	if delivery := b.findDelivery(job); delivery != nil {
		verdict = delivery.Success()
		if verdict {
			b.logger.InfoWithScope(logger.Buyer, "job %s: delivery confirmed, tx %s", job.ID, delivery.TransactionHash)
		} else {
			b.logger.ErrorWithScope(logger.Buyer, "job %s: delivery reports failure: %s %s",
				job.ID, delivery.Error, delivery.Message)
		}
	} else {
		metrics.HandlerErrors.WithLabelValues("buyer", string(models.FailureMissingData)).Inc()
		b.logger.ErrorWithScope(logger.Buyer, "job %s: no delivery payload found, evaluating false", job.ID)
	}

	if err := handle.Evaluate(ctx, verdict); err != nil {
		b.logger.ErrorWithScope(logger.Buyer, "job %s: evaluation submit failed: %v", job.ID, err)
	}
}

// findDelivery locates the delivery payload, preferring typed envelopes and
// falling back to memo content that parses as a delivery object. The fallback
// only considers memos proposing Evaluation or a terminal phase; earlier
// memos carry negotiation and funding traffic whose content could otherwise
// be mistaken for a status report.
func (b *Buyer) findDelivery(job *models.Job) *models.DeliveryPayload {
	for i := len(job.Memos) - 1; i >= 0; i-- {
		if decoded, ok := decodeEnvelope(&job.Memos[i]).(*models.DeliveryPayload); ok {
			return decoded
		}
	}
	for i := len(job.Memos) - 1; i >= 0; i-- {
		memo := &job.Memos[i]
		if memo.NextPhase != models.PhaseEvaluation && !memo.NextPhase.IsTerminal() {
			continue
		}
		var delivery models.DeliveryPayload
		if err := json.Unmarshal([]byte(memo.Content), &delivery); err == nil {
			if delivery.Status != "" || delivery.Error != "" || delivery.TransactionHash != "" {
				return &delivery
			}
		}
	}
	return nil
}
