package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operari-hq/acp-trader/pkg/models"
)

const testTokenCSV = `Token,Full Name,Contract Address,Decimals
USDC,USD Coin,0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913,6
DAI,Dai Stablecoin,0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb,18
cbBTC,Coinbase Wrapped BTC,0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf,8
badrow,Broken Token,not-an-address,6
`

func writeTokenTable(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestResolveSymbol(t *testing.T) {
	reg := New(writeTokenTable(t, testTokenCSV), nil)

	info, err := reg.Resolve("USDC")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), info.Address)
	assert.Equal(t, 6, info.Decimals)

	// Symbol lookup is case-insensitive.
	lower, err := reg.Resolve("usdc")
	require.NoError(t, err)
	assert.Equal(t, info, lower)

	mixed, err := reg.Resolve("CBBTC")
	require.NoError(t, err)
	assert.Equal(t, 8, mixed.Decimals)
}

func TestResolveETHMapsToWrappedNative(t *testing.T) {
	reg := New(writeTokenTable(t, testTokenCSV), nil)

	for _, id := range []string{"ETH", "eth", "Eth"} {
		info, err := reg.Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(WrappedNativeAddress), info.Address)
		assert.Equal(t, NativeDecimals, info.Decimals)
	}
}

func TestResolveAddress(t *testing.T) {
	reg := New(writeTokenTable(t, testTokenCSV), nil)

	// Listed address picks up decimals from the table.
	listed, err := reg.Resolve("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	require.NoError(t, err)
	assert.Equal(t, 6, listed.Decimals)

	// Unlisted address is accepted with 18 decimals assumed.
	unlisted, err := reg.Resolve("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, 18, unlisted.Decimals)
}

func TestResolveUnknownSymbol(t *testing.T) {
	reg := New(writeTokenTable(t, testTokenCSV), nil)

	_, err := reg.Resolve("NOTATOKEN")
	require.Error(t, err)
	failure, ok := err.(*models.Failure)
	require.True(t, ok)
	assert.Equal(t, models.FailureUnknownToken, failure.Kind)
}

func TestResolveWithMissingTable(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "does-not-exist.csv"), nil)

	// Addresses and ETH still resolve without a table.
	_, err := reg.Resolve("ETH")
	require.NoError(t, err)
	_, err = reg.Resolve("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	// Symbols cannot.
	_, err = reg.Resolve("USDC")
	require.Error(t, err)
}

func TestLoadIsIdempotent(t *testing.T) {
	path := writeTokenTable(t, testTokenCSV)
	reg := New(path, nil)

	first, err := reg.Resolve("DAI")
	require.NoError(t, err)

	// Rewriting the file after the first resolve must not change results:
	// the table is read exactly once.
	require.NoError(t, os.WriteFile(path, []byte("Token,Full Name,Contract Address,Decimals\n"), 0o644))

	second, err := reg.Resolve("DAI")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMalformedRowsAreSkipped(t *testing.T) {
	reg := New(writeTokenTable(t, testTokenCSV), nil)

	_, err := reg.Resolve("badrow")
	require.Error(t, err, "rows with invalid addresses must not be loaded")
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"0.01", 6, "10000", false},
		{"2.5", 8, "250000000", false},
		{"0.0000001", 6, "", true}, // truncates to zero
		{"0", 18, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
		{"1.2.3", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToBaseUnits(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
