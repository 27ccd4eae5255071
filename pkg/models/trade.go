package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultSlippageBps is applied when the request omits slippage (1.00%).
	DefaultSlippageBps = 100
	// MaxSlippageBps caps tolerated slippage at 20%.
	MaxSlippageBps = 2000
	// DefaultChain is assumed when the request omits the chain name.
	DefaultChain = "base"
)

// TradeRequest is a validated swap intent parsed from the buyer's first
// structured memo. It is immutable once parsed.
type TradeRequest struct {
	Side        string `json:"side"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
	Recipient   string `json:"recipient,omitempty"`
	Chain       string `json:"chain,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// rawTradeRequest separates decoding from validation so that an absent
// slippageBps can be told apart from an explicit zero.
type rawTradeRequest struct {
	Side        string `json:"side"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	SlippageBps *int   `json:"slippageBps"`
	Recipient   string `json:"recipient"`
	Chain       string `json:"chain"`
	Notes       string `json:"notes"`
}

// ParseTradeRequest decodes and validates a trade request. It fails closed:
// malformed input is rejected rather than defaulted, except slippageBps and
// chain which have defined defaults.
func ParseTradeRequest(data []byte) (*TradeRequest, error) {
	var raw rawTradeRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewFailure(FailureValidation, fmt.Sprintf("trade request is not a JSON object: %v", err))
	}

	side := strings.ToLower(strings.TrimSpace(raw.Side))
	if side != "buy" && side != "sell" {
		return nil, NewFailure(FailureValidation, "side must be 'buy' or 'sell'")
	}

	fromToken := strings.TrimSpace(raw.FromToken)
	toToken := strings.TrimSpace(raw.ToToken)
	amount := strings.TrimSpace(raw.Amount)
	if fromToken == "" || toToken == "" || amount == "" {
		return nil, NewFailure(FailureValidation, "fromToken, toToken, and amount are required")
	}

	slippageBps := DefaultSlippageBps
	if raw.SlippageBps != nil {
		slippageBps = *raw.SlippageBps
	}
	if slippageBps < 0 || slippageBps > MaxSlippageBps {
		return nil, NewFailure(FailureValidation, fmt.Sprintf("slippageBps out of range (0-%d)", MaxSlippageBps))
	}

	chain := strings.ToLower(strings.TrimSpace(raw.Chain))
	if chain == "" {
		chain = DefaultChain
	}

	return &TradeRequest{
		Side:        side,
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      amount,
		SlippageBps: slippageBps,
		Recipient:   strings.TrimSpace(raw.Recipient),
		Chain:       chain,
		Notes:       raw.Notes,
	}, nil
}

// SlippagePercent converts basis points to a percentage.
func (t *TradeRequest) SlippagePercent() float64 {
	return float64(t.SlippageBps) / 100.0
}

// Summary returns a one-line human description of the trade.
func (t *TradeRequest) Summary() string {
	return fmt.Sprintf("%s %s %s -> %s on %s",
		strings.ToUpper(t.Side), t.Amount, t.FromToken, t.ToToken, t.Chain)
}
