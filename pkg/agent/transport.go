package agent

import (
	"context"
)

// PhaseListener receives a job handle each time the transport observes a
// phase change on a job this agent participates in. Both Seller and Buyer
// implement it.
type PhaseListener interface {
	OnPhaseChange(ctx context.Context, handle JobHandle)
}

// Transport wraps the commerce-protocol client. Implementations watch the
// agent's job feed, dispatch updates into the registered listener, and give
// the seller a way back to a job for deliveries that happen outside a
// phase-change callback.
type Transport interface {
	// Listen blocks, dispatching job updates into the listener until the
	// context is cancelled.
	Listen(ctx context.Context, listener PhaseListener) error

	// Handle returns a handle for a known job. The funding monitor uses
	// it to deliver results long after the triggering phase change.
	Handle(ctx context.Context, jobID string) (JobHandle, error)

	// InitiateJob opens a new job against a provider, attaching the trade
	// requirement as the first memo. Buy side only.
	InitiateJob(ctx context.Context, provider string, requirement string, fee float64) (string, error)
}
