// Package health exposes liveness, readiness, status, and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/operari-hq/acp-trader/pkg/blockchain"
	"github.com/operari-hq/acp-trader/pkg/circuitbreaker"
	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/store"
)

// Server represents a health check HTTP server
type Server struct {
	port          string
	chain         *blockchain.ChainConfig
	breaker       *circuitbreaker.CircuitBreaker
	store         *store.Store
	metricsAPIKey string
	logger        logger.Logger
}

// NewServer creates a new health check server
func NewServer(port string, chain *blockchain.ChainConfig, breaker *circuitbreaker.CircuitBreaker, st *store.Store, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Server{
		port:          port,
		chain:         chain,
		breaker:       breaker,
		store:         st,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
		logger:        log,
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler builds the route table. Split from Start so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.chain == nil || !s.chain.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Chain client not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]interface{})

		circuitStatus := "closed"
		if s.breaker != nil && s.breaker.IsOpen() {
			circuitStatus = "open"
		}

		chainStatus := map[string]interface{}{
			"name":      s.chain.Name,
			"chain_id":  s.chain.ChainID,
			"rpc_url":   s.chain.RPCURL,
			"connected": s.chain.Connected(),
			"circuit":   circuitStatus,
		}
		if s.chain.Connected() {
			if blockNumber, err := s.chain.GetLatestBlockNumber(r.Context()); err == nil {
				chainStatus["latest_block"] = blockNumber
			}
		}
		status["chain"] = chainStatus

		if s.store != nil {
			if counts, err := s.store.CountByStatus(); err == nil {
				status["jobs"] = map[string]int{
					"awaiting_funds": counts[store.StatusAwaitingFunds],
					"completed":      counts[store.StatusCompleted],
					"failed":         counts[store.StatusFailed],
				}
			}
			if s.chain.Connected() {
				if total, err := s.escrowBalanceSum(r.Context()); err == nil {
					status["escrow_balance_wei"] = total.String()
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.ErrorWithScope(logger.Health, "Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.breaker == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker configured"))
			return
		}
		s.breaker.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker reset"))
	})

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return mux
}

// escrowBalanceSum totals the native balance across all awaiting escrow
// wallets. Best effort: unreadable wallets are skipped.
func (s *Server) escrowBalanceSum(ctx context.Context) (*big.Int, error) {
	records, err := s.store.ListAwaiting()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, rec := range records {
		if !common.IsHexAddress(rec.EscrowAddress) {
			continue
		}
		balance, err := s.chain.Client.BalanceAt(ctx, common.HexToAddress(rec.EscrowAddress), nil)
		if err != nil {
			continue
		}
		total.Add(total, balance)
	}
	return total, nil
}

// Start starts the health check server and blocks until it exits.
func (s *Server) Start() {
	s.logger.InfoWithScope(logger.Health, "Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, s.Handler()); err != nil {
		s.logger.ErrorWithScope(logger.Health, "Health server error: %v", err)
	}
}
