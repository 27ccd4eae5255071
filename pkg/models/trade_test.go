package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, tr *TradeRequest)
	}{
		{
			name:  "valid buy request with explicit slippage",
			input: `{"side":"buy","fromToken":"USDC","toToken":"0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb","amount":"0.01","slippageBps":100}`,
			check: func(t *testing.T, tr *TradeRequest) {
				assert.Equal(t, "buy", tr.Side)
				assert.Equal(t, 100, tr.SlippageBps)
				assert.Equal(t, DefaultChain, tr.Chain)
			},
		},
		{
			name:  "slippage defaults when omitted",
			input: `{"side":"sell","fromToken":"ETH","toToken":"USDC","amount":"1"}`,
			check: func(t *testing.T, tr *TradeRequest) {
				assert.Equal(t, DefaultSlippageBps, tr.SlippageBps)
			},
		},
		{
			name:  "explicit zero slippage is preserved",
			input: `{"side":"sell","fromToken":"ETH","toToken":"USDC","amount":"1","slippageBps":0}`,
			check: func(t *testing.T, tr *TradeRequest) {
				assert.Equal(t, 0, tr.SlippageBps)
			},
		},
		{
			name:  "side is case-insensitive",
			input: `{"side":"BUY","fromToken":"USDC","toToken":"DAI","amount":"5"}`,
			check: func(t *testing.T, tr *TradeRequest) {
				assert.Equal(t, "buy", tr.Side)
			},
		},
		{
			name:    "invalid side",
			input:   `{"side":"hold","fromToken":"USDC","toToken":"DAI","amount":"5"}`,
			wantErr: true,
		},
		{
			name:    "missing amount",
			input:   `{"side":"buy","fromToken":"USDC","toToken":"DAI"}`,
			wantErr: true,
		},
		{
			name:    "missing from token",
			input:   `{"side":"buy","toToken":"DAI","amount":"5"}`,
			wantErr: true,
		},
		{
			name:    "slippage above cap",
			input:   `{"side":"buy","fromToken":"USDC","toToken":"DAI","amount":"5","slippageBps":2001}`,
			wantErr: true,
		},
		{
			name:    "negative slippage",
			input:   `{"side":"buy","fromToken":"USDC","toToken":"DAI","amount":"5","slippageBps":-1}`,
			wantErr: true,
		},
		{
			name:    "not a JSON object",
			input:   `swap my tokens please`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseTradeRequest([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				failure, ok := err.(*Failure)
				require.True(t, ok, "parse errors must be classified failures")
				assert.Equal(t, FailureValidation, failure.Kind)
				return
			}
			require.NoError(t, err)
			tt.check(t, tr)
		})
	}
}

func TestParseTradeRequestSlippageBoundaries(t *testing.T) {
	// Exactly 0 and exactly 2000 are both inside the allowed range.
	for _, bps := range []int{0, MaxSlippageBps} {
		input := fmt.Sprintf(`{"side":"buy","fromToken":"USDC","toToken":"DAI","amount":"5","slippageBps":%d}`, bps)
		tr, err := ParseTradeRequest([]byte(input))
		require.NoError(t, err)
		assert.Equal(t, bps, tr.SlippageBps)
	}

	tr, err := ParseTradeRequest([]byte(`{"side":"buy","fromToken":"USDC","toToken":"DAI","amount":"5","slippageBps":2000}`))
	require.NoError(t, err)
	assert.Equal(t, 20.0, tr.SlippagePercent())
}

func TestTradeRequestMemoScan(t *testing.T) {
	job := &Job{
		ID: "job-1",
		Memos: []Memo{
			{Content: "payment confirmation"},
			{Content: `{"side":"buy","fromToken":"USDC","toToken":"DAI","amount":"0.01"}`},
			{Content: `{"side":"sell","fromToken":"DAI","toToken":"USDC","amount":"9"}`},
		},
	}

	memo := job.TradeRequestMemo()
	require.NotNil(t, memo)

	tr, err := ParseTradeRequest([]byte(memo.Content))
	require.NoError(t, err)
	assert.Equal(t, "buy", tr.Side, "scan must return the first parsable trade request")
}

func TestTradeRequestMemoMissing(t *testing.T) {
	job := &Job{ID: "job-2", Memos: []Memo{{Content: "hello"}}}
	assert.Nil(t, job.TradeRequestMemo())
}
