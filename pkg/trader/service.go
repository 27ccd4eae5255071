// Package trader wires the configured components into a runnable service.
package trader

import (
	"context"
	"fmt"

	"github.com/operari-hq/acp-trader/pkg/agent"
	"github.com/operari-hq/acp-trader/pkg/allowance"
	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/circuitbreaker"
	"github.com/operari-hq/acp-trader/pkg/config"
	"github.com/operari-hq/acp-trader/pkg/executor"
	"github.com/operari-hq/acp-trader/pkg/health"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/models"
	"github.com/operari-hq/acp-trader/pkg/monitor"
	"github.com/operari-hq/acp-trader/pkg/quote"
	"github.com/operari-hq/acp-trader/pkg/registry"
	"github.com/operari-hq/acp-trader/pkg/store"
)

// Service owns the wired component graph for one agent process. Which parts
// are active depends on the configured role and custody mode.
type Service struct {
	config    *config.Config
	logger    logger.Logger
	chain     *blockchain.ChainConfig
	store     *store.Store
	breaker   *circuitbreaker.CircuitBreaker
	monitor   *monitor.Monitor
	health    *health.Server
	transport agent.Transport
	seller    *agent.Seller
	buyer     *agent.Buyer
}

// NewService builds and connects the component graph. transport may be nil;
// the seller then still records and settles jobs but cannot push deliveries
// back to the counterparty.
func NewService(ctx context.Context, cfg *config.Config, transport agent.Transport) (*Service, error) {
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	chain := blockchain.NewChainConfig(cfg.ChainID, cfg.ChainName, cfg.RPCURL, cfg.GasMultiplier, log)
	if err := chain.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", cfg.ChainName, err)
	}

	st, err := store.NewStore(cfg.JobsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %v", err)
	}

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		log,
	)

	s := &Service{
		config:    cfg,
		logger:    log,
		chain:     chain,
		store:     st,
		breaker:   breaker,
		health:    health.NewServer(cfg.MetricsPort, chain, breaker, st, log),
		transport: transport,
	}

	mode := agent.ModeEscrow
	if !cfg.IsEscrow() {
		mode = agent.ModeDirect
	}

	if cfg.IsSeller() {
		if err := s.buildSeller(mode); err != nil {
			return nil, err
		}
	} else {
		s.buyer = agent.NewBuyer(mode, log)
	}

	return s, nil
}

func (s *Service) buildSeller(mode agent.CustodyMode) error {
	cfg := s.config

	builder, err := quote.NewClient(cfg.TradeServiceBaseURL, cfg.TradeServiceAPIKey, s.logger)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.TokensPath, s.logger)
	approver := allowance.NewManager(s.chain.Client, cfg.ChainID, cfg.GasMultiplier, cfg.ConfirmTimeout, s.logger)
	exec := executor.New(s.chain.Client, reg, builder, approver, cfg.ChainID, cfg.GasMultiplier, cfg.ConfirmTimeout, s.logger)

	sellerCfg := agent.SellerConfig{
		Mode:              mode,
		ReportingEndpoint: cfg.ReportingEndpoint,
	}
	if cfg.TestWalletKey != "" {
		wallet, err := blockchain.LoadEscrowWallet(cfg.TestWalletKey)
		if err != nil {
			return fmt.Errorf("failed to load test wallet: %v", err)
		}
		sellerCfg.TestWallet = wallet
	}
	if cfg.ServiceWalletKey != "" {
		wallet, err := blockchain.LoadEscrowWallet(cfg.ServiceWalletKey)
		if err != nil {
			return fmt.Errorf("failed to load service wallet: %v", err)
		}
		sellerCfg.ServiceWallet = wallet
	}

	s.seller = agent.NewSeller(sellerCfg, s.store, exec, exec, s.logger)

	if cfg.IsEscrow() {
		s.monitor = monitor.New(s.store, s.chain.Client, exec, s.breaker, s.deliverOutcome, s.logger)
		s.monitor.SetIntervals(cfg.PollInterval, cfg.ErrorInterval)
	}
	return nil
}

// deliverOutcome pushes a monitor result back through the transport. Best
// effort: the terminal record status is already on disk when this runs.
func (s *Service) deliverOutcome(ctx context.Context, jobID string, payload *models.DeliveryPayload) error {
	if s.transport == nil {
		return fmt.Errorf("no transport configured")
	}
	handle, err := s.transport.Handle(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to resolve job %s: %v", jobID, err)
	}
	return s.seller.DeliverOutcome(ctx, handle, payload)
}

// Seller returns the sell-side handler, nil for buyer processes.
func (s *Service) Seller() *agent.Seller {
	return s.seller
}

// Buyer returns the buy-side handler, nil for seller processes.
func (s *Service) Buyer() *agent.Buyer {
	return s.buyer
}

// Start runs the service until the context is cancelled. The health server
// and, for escrow sellers, the funding monitor run on their own goroutines;
// the transport listen loop runs on this one.
func (s *Service) Start(ctx context.Context) {
	go s.health.Start()

	if s.monitor != nil {
		go s.monitor.Start(ctx)
	}

	var listener agent.PhaseListener
	if s.seller != nil {
		listener = s.seller
	} else {
		listener = s.buyer
	}

	if s.transport != nil {
		if err := s.transport.Listen(ctx, listener); err != nil && ctx.Err() == nil {
			s.logger.Error("Transport listener exited: %v", err)
		}
		return
	}

	s.logger.Notice("No transport configured, running monitor and health endpoints only")
	<-ctx.Done()
}
