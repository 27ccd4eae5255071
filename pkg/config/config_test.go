package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSellerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TRADE_SERVICE_BASE_URL", "http://localhost:3000")
	t.Setenv("TRADE_SERVICE_API_KEY", "test-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	setSellerEnv(t)

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "seller", config.Role)
	assert.Equal(t, "escrow", config.CustodyMode)
	assert.True(t, config.IsEscrow())
	assert.Equal(t, int64(8453), config.ChainID)
	assert.Equal(t, DefaultBaseRPCURL, config.RPCURL)
	assert.Equal(t, 15*time.Second, config.PollInterval)
	assert.Equal(t, 30*time.Second, config.ErrorInterval)
	assert.Equal(t, 300*time.Second, config.ConfirmTimeout)
	assert.Equal(t, "8080", config.MetricsPort)
	assert.True(t, config.CircuitBreaker.Enabled)
}

func TestLoadConfigSellerRequiresTradeService(t *testing.T) {
	t.Setenv("TRADE_SERVICE_BASE_URL", "")
	t.Setenv("TRADE_SERVICE_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADE_SERVICE_BASE_URL")
}

func TestLoadConfigBuyerSkipsTradeService(t *testing.T) {
	t.Setenv("AGENT_ROLE", "buyer")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, config.IsSeller())
	assert.Empty(t, config.TradeServiceBaseURL)
}

func TestLoadConfigInvalidRole(t *testing.T) {
	t.Setenv("AGENT_ROLE", "arbiter")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigInvalidCustodyMode(t *testing.T) {
	setSellerEnv(t)
	t.Setenv("CUSTODY_MODE", "hybrid")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigDirectModeRequiresServiceWallet(t *testing.T) {
	setSellerEnv(t)
	t.Setenv("CUSTODY_MODE", "direct")
	t.Setenv("SERVICE_WALLET_PRIVATE_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVICE_WALLET_PRIVATE_KEY")
}

func TestLoadConfigOverrides(t *testing.T) {
	setSellerEnv(t)
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("ERROR_INTERVAL", "45s")
	t.Setenv("CUSTODY_MODE", "escrow")
	t.Setenv("JOBS_DIR", "/var/lib/trader/jobs")
	t.Setenv("GAS_MULTIPLIER", "1.25")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, 45*time.Second, config.ErrorInterval)
	assert.Equal(t, "/var/lib/trader/jobs", config.JobsDir)
	assert.Equal(t, 1.25, config.GasMultiplier)
}

func TestGetEnvPollIntervalRejectsGarbage(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	_, err := GetEnvPollInterval()
	assert.Error(t, err)

	t.Setenv("POLL_INTERVAL", "-5s")
	_, err = GetEnvPollInterval()
	assert.Error(t, err)
}
