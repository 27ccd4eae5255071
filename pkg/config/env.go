package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/operari-hq/acp-trader/pkg/logger"
)

const (
	roleSeller = "seller"
	roleBuyer  = "buyer"

	custodyEscrow = "escrow"
	custodyDirect = "direct"

	// DefaultRole is the default agent role for the process
	DefaultRole = roleSeller

	// DefaultCustodyMode selects seller-escrow custody unless overridden
	DefaultCustodyMode = custodyEscrow

	// DefaultPollInterval defines the funding monitor poll interval
	DefaultPollInterval = 15 * time.Second

	// DefaultErrorInterval defines the slower poll interval after errors
	DefaultErrorInterval = 30 * time.Second

	// DefaultConfirmTimeout bounds transaction confirmation waits
	DefaultConfirmTimeout = 300 * time.Second

	// DefaultMetricsPort defines the default port for the health/metrics server
	DefaultMetricsPort = "8080"

	// DefaultJobsDir is where job records are persisted
	DefaultJobsDir = "jobs"

	// DefaultTokensPath is the token metadata table
	DefaultTokensPath = "tokens.csv"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5 * time.Minute

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15 * time.Minute

	// DefaultGasMultiplier is the gas price buffer applied to live quotes
	DefaultGasMultiplier = 1.1

	// Base mainnet is the single supported chain

	BaseMainnetChainID = 8453
	BaseChainName      = "base"

	DefaultBaseRPCURL = "https://mainnet.base.org"
)

// GetEnvRole returns the agent role for this process.
func GetEnvRole() (string, error) {
	role := os.Getenv("AGENT_ROLE")
	if role == "" {
		return DefaultRole, nil
	}
	if role != roleSeller && role != roleBuyer {
		return "", fmt.Errorf("invalid AGENT_ROLE value: %s, must be 'seller' or 'buyer'", role)
	}
	return role, nil
}

// GetEnvCustodyMode returns the custody mode. Exactly one of the two models
// runs per deployment.
func GetEnvCustodyMode() (string, error) {
	mode := os.Getenv("CUSTODY_MODE")
	if mode == "" {
		return DefaultCustodyMode, nil
	}
	if mode != custodyEscrow && mode != custodyDirect {
		return "", fmt.Errorf("invalid CUSTODY_MODE value: %s, must be 'escrow' or 'direct'", mode)
	}
	return mode, nil
}

// GetEnvRPCURL returns the Base RPC endpoint.
func GetEnvRPCURL() (string, error) {
	rpc := os.Getenv("BASE_RPC_URL")
	if rpc == "" {
		return DefaultBaseRPCURL, nil
	}
	if _, err := url.ParseRequestURI(rpc); err != nil {
		return "", fmt.Errorf("invalid BASE_RPC_URL value: %s, must be a valid URL", rpc)
	}
	return rpc, nil
}

// GetEnvGasMultiplier returns the gas price buffer multiplier.
func GetEnvGasMultiplier() (float64, error) {
	multiplier := os.Getenv("GAS_MULTIPLIER")
	if multiplier == "" {
		return DefaultGasMultiplier, nil
	}
	parsed, err := strconv.ParseFloat(multiplier, 64)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid GAS_MULTIPLIER value: %s, must be a positive number", multiplier)
	}
	return parsed, nil
}

// GetEnvPollInterval returns the funding monitor poll interval.
func GetEnvPollInterval() (time.Duration, error) {
	return getEnvDuration("POLL_INTERVAL", DefaultPollInterval)
}

// GetEnvErrorInterval returns the post-error poll interval.
func GetEnvErrorInterval() (time.Duration, error) {
	return getEnvDuration("ERROR_INTERVAL", DefaultErrorInterval)
}

// GetEnvConfirmTimeout returns the transaction confirmation timeout.
func GetEnvConfirmTimeout() (time.Duration, error) {
	return getEnvDuration("CONFIRM_TIMEOUT", DefaultConfirmTimeout)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

// GetEnvMetricsPort returns the health/metrics server port.
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvJobsDir returns the job record directory.
func GetEnvJobsDir() string {
	dir := os.Getenv("JOBS_DIR")
	if dir == "" {
		return DefaultJobsDir
	}
	return dir
}

// GetEnvTokensPath returns the token metadata CSV path.
func GetEnvTokensPath() string {
	path := os.Getenv("TOKENS_CSV_PATH")
	if path == "" {
		return DefaultTokensPath
	}
	return path
}

// GetEnvTradeService returns the quote/build provider endpoint and API key.
// Both are required: the seller cannot build swaps without them.
func GetEnvTradeService() (baseURL, apiKey string, err error) {
	baseURL = os.Getenv("TRADE_SERVICE_BASE_URL")
	if baseURL == "" {
		return "", "", fmt.Errorf("TRADE_SERVICE_BASE_URL is not set")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return "", "", fmt.Errorf("invalid TRADE_SERVICE_BASE_URL value: %s, must be a valid URL", baseURL)
	}
	apiKey = os.Getenv("TRADE_SERVICE_API_KEY")
	if apiKey == "" {
		return "", "", fmt.Errorf("TRADE_SERVICE_API_KEY is not set")
	}
	return baseURL, apiKey, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}
	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}
	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}
	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow)
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset)
}

// GetEnvLogLevel returns the log level from environment variables.
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
	}
}

// GetEnvLogColoring returns whether log output should be colored.
func GetEnvLogColoring() bool {
	return os.Getenv("LOG_COLOR") != "false"
}
