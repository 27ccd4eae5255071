// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/operari-hq/acp-trader/pkg/logger"
)

// Config holds the configuration for the trader service
type Config struct {
	Role        string
	CustodyMode string

	ChainID       int64
	ChainName     string
	RPCURL        string
	GasMultiplier float64

	JobsDir    string
	TokensPath string

	TradeServiceBaseURL string
	TradeServiceAPIKey  string

	// ServiceWalletKey signs swaps in direct-pay mode. Never logged.
	ServiceWalletKey string
	// TestWalletKey, when set, replaces per-job escrow wallet generation
	// with one fixed pre-funded wallet. Test deployments only.
	TestWalletKey string

	ReportingEndpoint string

	PollInterval   time.Duration
	ErrorInterval  time.Duration
	ConfirmTimeout time.Duration

	MetricsPort    string
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// IsSeller reports whether this process runs the sell-side agent.
func (c *Config) IsSeller() bool {
	return c.Role == roleSeller
}

// IsEscrow reports whether the deployment uses seller-escrow custody.
func (c *Config) IsEscrow() bool {
	return c.CustodyMode == custodyEscrow
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	role, err := GetEnvRole()
	if err != nil {
		return nil, err
	}

	custodyMode, err := GetEnvCustodyMode()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	gasMultiplier, err := GetEnvGasMultiplier()
	if err != nil {
		return nil, err
	}

	pollInterval, err := GetEnvPollInterval()
	if err != nil {
		return nil, err
	}

	errorInterval, err := GetEnvErrorInterval()
	if err != nil {
		return nil, err
	}

	confirmTimeout, err := GetEnvConfirmTimeout()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Role:              role,
		CustodyMode:       custodyMode,
		ChainID:           BaseMainnetChainID,
		ChainName:         BaseChainName,
		RPCURL:            rpcURL,
		GasMultiplier:     gasMultiplier,
		JobsDir:           GetEnvJobsDir(),
		TokensPath:        GetEnvTokensPath(),
		ServiceWalletKey:  os.Getenv("SERVICE_WALLET_PRIVATE_KEY"),
		TestWalletKey:     os.Getenv("TEST_WALLET_PRIVATE_KEY"),
		ReportingEndpoint: os.Getenv("REPORTING_API_ENDPOINT"),
		PollInterval:      pollInterval,
		ErrorInterval:     errorInterval,
		ConfirmTimeout:    confirmTimeout,
		MetricsPort:       metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: GetEnvLogColoring(),
		},
	}

	// The seller needs the quote provider; the buyer never builds swaps.
	if config.IsSeller() {
		baseURL, apiKey, err := GetEnvTradeService()
		if err != nil {
			return nil, err
		}
		config.TradeServiceBaseURL = baseURL
		config.TradeServiceAPIKey = apiKey

		if config.CustodyMode == custodyDirect && config.ServiceWalletKey == "" {
			return nil, fmt.Errorf("SERVICE_WALLET_PRIVATE_KEY is required in direct custody mode")
		}
	}

	return config, nil
}
