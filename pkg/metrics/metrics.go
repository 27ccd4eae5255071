package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	SwapsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_swaps_executed_total",
		Help: "The total number of swap executions by outcome",
	}, []string{"status"})

	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_swap_duration_seconds",
		Help:    "Time from funding detection to swap confirmation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	})

	GasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_gas_used",
		Help:    "Gas used by swap transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10),
	})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_gas_price_gwei",
		Help: "Current gas price in gwei",
	})

	AwaitingFunds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_awaiting_funds_jobs",
		Help: "The number of job records waiting for escrow funding",
	})

	FundingPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_funding_polls_total",
		Help: "Escrow balance polls by result (funded, empty, error)",
	}, []string{"result"})

	ApprovalsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_approvals_issued_total",
		Help: "Number of ERC-20 approval transactions issued",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_delivery_failures_total",
		Help: "Delivery callbacks to the negotiation transport that failed",
	})

	JobsByPhase = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_jobs_handled_total",
		Help: "Phase-change notifications handled, by role and phase",
	}, []string{"role", "phase"})

	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_handler_errors_total",
		Help: "Errors surfaced at the negotiation handler boundary by kind",
	}, []string{"role", "error_kind"})
)
