package blockchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferGasPrice(t *testing.T) {
	gwei := big.NewInt(1_000_000_000)

	assert.Equal(t, big.NewInt(1_100_000_000), BufferGasPrice(gwei, 1.1))
	assert.Equal(t, big.NewInt(2_000_000_000), BufferGasPrice(gwei, 2.0))

	// Identity and degenerate multipliers leave the quote untouched.
	assert.Equal(t, gwei, BufferGasPrice(gwei, 1.0))
	assert.Equal(t, gwei, BufferGasPrice(gwei, 0))
	assert.Equal(t, gwei, BufferGasPrice(gwei, -3))
	assert.Nil(t, BufferGasPrice(nil, 1.5))
}

func TestNewChainConfigDefaultsMultiplier(t *testing.T) {
	chain := NewChainConfig(8453, "base", "http://localhost:8545", 0, nil)
	assert.Equal(t, 1.1, chain.GasMultiplier)
	assert.False(t, chain.Connected())
}
