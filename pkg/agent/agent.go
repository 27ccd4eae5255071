// Package agent implements the buyer- and seller-side handlers for job phase
// changes delivered by the negotiation transport.
package agent

import (
	"context"

	"github.com/operari-hq/acp-trader/pkg/models"
)

// CustodyMode selects which settlement model a deployment runs. Exactly one
// is active: direct-pay (buyer custody, seller executes from its own funds)
// or escrow (seller-generated designated wallet funded by the buyer). The two
// are mutually exclusive custody designs and must never be combined.
type CustodyMode string

const (
	ModeDirect CustodyMode = "direct"
	ModeEscrow CustodyMode = "escrow"
)

// JobHandle is the transport's callback surface for one job. The transport
// invokes the handlers with a handle; the handlers answer through it. All
// methods refer to the job the handle was created for.
type JobHandle interface {
	// Job returns the current job state including its memo history.
	Job() *models.Job

	// Respond accepts or rejects the job at the Request phase. The
	// envelope, when non-nil, rides along as the response payload.
	Respond(ctx context.Context, accept bool, payload *models.Envelope) error

	// Pay transfers the agreed service fee (direct-pay custody). On
	// completion the transport appends a settlement-payload memo to the
	// job history; the buyer relies on that memo to recognize an
	// already-funded job after a restart.
	Pay(ctx context.Context, amount float64) error

	// TransferFunds moves trade capital to a seller-designated wallet
	// (escrow custody). Completion is confirmed the same way as Pay, with
	// a settlement-payload memo in the job history.
	TransferFunds(ctx context.Context, amount string, walletAddress string) error

	// Deliver submits the seller's terminal result for the job.
	Deliver(ctx context.Context, payload *models.Envelope) error

	// Evaluate records the buyer's verdict on a delivery.
	Evaluate(ctx context.Context, approved bool) error
}

// decodeEnvelope decodes a memo's payload envelope into its typed variant,
// returning nil when the memo carries no payload or an undecodable one.
// Handlers treat an absent payload as missing counterparty data, never as a
// crash.
func decodeEnvelope(memo *models.Memo) interface{} {
	if memo == nil || len(memo.Payload) == 0 {
		return nil
	}
	decoded, err := models.DecodePayload(memo.Payload)
	if err != nil {
		return nil
	}
	return decoded
}
