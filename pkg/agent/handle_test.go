package agent

import (
	"context"

	"github.com/operari-hq/acp-trader/pkg/models"
)

// fakeHandle records every transport callback for assertions.
type fakeHandle struct {
	job *models.Job

	responses []response
	payments  []float64
	transfers []transfer
	delivered []*models.Envelope
	verdicts  []bool

	respondErr  error
	payErr      error
	transferErr error
	deliverErr  error
}

type response struct {
	accept  bool
	payload *models.Envelope
}

type transfer struct {
	amount string
	wallet string
}

func (h *fakeHandle) Job() *models.Job { return h.job }

func (h *fakeHandle) Respond(_ context.Context, accept bool, payload *models.Envelope) error {
	if h.respondErr != nil {
		return h.respondErr
	}
	h.responses = append(h.responses, response{accept: accept, payload: payload})
	return nil
}

func (h *fakeHandle) Pay(_ context.Context, amount float64) error {
	if h.payErr != nil {
		return h.payErr
	}
	h.payments = append(h.payments, amount)
	return nil
}

func (h *fakeHandle) TransferFunds(_ context.Context, amount, walletAddress string) error {
	if h.transferErr != nil {
		return h.transferErr
	}
	h.transfers = append(h.transfers, transfer{amount: amount, wallet: walletAddress})
	return nil
}

func (h *fakeHandle) Deliver(_ context.Context, payload *models.Envelope) error {
	if h.deliverErr != nil {
		return h.deliverErr
	}
	h.delivered = append(h.delivered, payload)
	return nil
}

func (h *fakeHandle) Evaluate(_ context.Context, approved bool) error {
	h.verdicts = append(h.verdicts, approved)
	return nil
}
