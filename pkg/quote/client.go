// Package quote talks to the external quote/build provider that turns a trade
// intent into ready-to-sign transaction payloads.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/operari-hq/acp-trader/pkg/logger"
	"github.com/operari-hq/acp-trader/pkg/models"
)

const requestTimeout = 30 * time.Second

// TxData is the provider-built transaction payload for one leg.
type TxData struct {
	To           string `json:"to"`
	Data         string `json:"data"`
	Value        string `json:"value"`
	Gas          string `json:"gas"`
	GasPriceGwei string `json:"gasPriceGwei"`
	TotalGas     string `json:"totalGas"`
	GasUsd       string `json:"gasUsd"`
}

// BuildResult is a complete swap bundle: the swap transaction itself plus an
// optional approval transaction that must be mined first.
type BuildResult struct {
	TransactionData TxData  `json:"transactionData"`
	NeedsApproval   bool    `json:"needsApproval"`
	ApprovalData    *TxData `json:"approvalData,omitempty"`
	SellAmount      string  `json:"sellAmount"`
	SellToken       string  `json:"sellToken"`
	BuyToken        string  `json:"buyToken"`
}

// BuildRequest are the parameters the provider needs to build a swap.
type BuildRequest struct {
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	// WalletAddress is always the executing wallet: the provider computes
	// calldata and the approval decision against it.
	WalletAddress string `json:"walletAddress"`
	// RecipientAddress optionally routes the swap output elsewhere.
	RecipientAddress  string  `json:"recipientAddress,omitempty"`
	SellTokenDecimals int     `json:"sellTokenDecimals"`
	Slippage          float64 `json:"slippage"`
}

// buildResponse is the provider's wire envelope.
type buildResponse struct {
	Success     bool         `json:"success"`
	Transaction *BuildResult `json:"transaction"`
	Error       string       `json:"error"`
	Message     string       `json:"message"`
}

// Client is a thin HTTP client for the quote/build provider. All requests
// carry bearer auth and a 30 second timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     logger.Logger
}

// NewClient creates a provider client. baseURL and apiKey are required.
func NewClient(baseURL, apiKey string, log logger.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("quote provider base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("quote provider API key is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     log,
	}, nil
}

// Build asks the provider for a swap bundle. Provider-reported errors and
// malformed responses come back as provider failures; the caller surfaces
// them as delivery errors without retrying.
func (c *Client) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, models.NewFailure(models.FailureProvider, fmt.Sprintf("failed to encode build request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/quote/build", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewFailure(models.FailureProvider, fmt.Sprintf("failed to create build request: %v", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, models.NewFailure(models.FailureProvider, fmt.Sprintf("quote provider unreachable: %v", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	// Read the body regardless of status code so error payloads surface.
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewFailure(models.FailureProvider, fmt.Sprintf("failed to read provider response: %v", err))
	}

	var decoded buildResponse
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, models.NewFailure(models.FailureProvider,
			fmt.Sprintf("malformed provider response (status %d): %v", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		message := decoded.Error
		if decoded.Message != "" {
			message = fmt.Sprintf("%s: %s", decoded.Error, decoded.Message)
		}
		if message == "" {
			message = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		return nil, models.NewFailure(models.FailureProvider, message)
	}

	if decoded.Transaction == nil || decoded.Transaction.TransactionData.To == "" {
		return nil, models.NewFailure(models.FailureProvider, "provider response is missing transaction data")
	}
	if decoded.Transaction.NeedsApproval && decoded.Transaction.ApprovalData == nil {
		return nil, models.NewFailure(models.FailureProvider, "provider requires approval but sent no approval data")
	}

	c.logger.DebugWithScope(logger.Chain, "build ok: sell %s %s -> %s (approval needed: %v)",
		decoded.Transaction.SellAmount, decoded.Transaction.SellToken,
		decoded.Transaction.BuyToken, decoded.Transaction.NeedsApproval)
	return decoded.Transaction, nil
}
