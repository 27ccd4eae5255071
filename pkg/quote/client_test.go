package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operari-hq/acp-trader/pkg/models"
)

func buildServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "test-key", nil)
	require.NoError(t, err)
	return client
}

func TestBuildSuccess(t *testing.T) {
	client := buildServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/quote/build", r.URL.Path)

		var req BuildRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0.01", req.SellAmount)
		assert.Equal(t, 6, req.SellTokenDecimals)

		json.NewEncoder(w).Encode(buildResponse{
			Success: true,
			Transaction: &BuildResult{
				TransactionData: TxData{
					To:    "0x6131B5fae19EA4f9D964eAc0408E4408b66337b5",
					Data:  "0xdeadbeef",
					Value: "0",
					Gas:   "210000",
				},
				NeedsApproval: true,
				ApprovalData: &TxData{
					To:           "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
					Data:         "0x095ea7b3",
					Gas:          "60000",
					GasPriceGwei: "0.1",
				},
				SellAmount: "0.01",
				SellToken:  "USDC",
				BuyToken:   "DAI",
			},
		})
	})

	result, err := client.Build(context.Background(), BuildRequest{
		SellToken:         "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		BuyToken:          "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb",
		SellAmount:        "0.01",
		WalletAddress:     "0x1111111111111111111111111111111111111111",
		SellTokenDecimals: 6,
		Slippage:          1.0,
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsApproval)
	require.NotNil(t, result.ApprovalData)
	assert.Equal(t, "0.1", result.ApprovalData.GasPriceGwei)
}

func TestBuildProviderError(t *testing.T) {
	client := buildServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(buildResponse{
			Error:   "INSUFFICIENT_LIQUIDITY",
			Message: "no route found",
		})
	})

	_, err := client.Build(context.Background(), BuildRequest{})
	require.Error(t, err)

	failure, ok := err.(*models.Failure)
	require.True(t, ok)
	assert.Equal(t, models.FailureProvider, failure.Kind)
	assert.Contains(t, failure.Message, "INSUFFICIENT_LIQUIDITY")
}

func TestBuildMalformedResponse(t *testing.T) {
	client := buildServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.Build(context.Background(), BuildRequest{})
	require.Error(t, err)
	failure, ok := err.(*models.Failure)
	require.True(t, ok)
	assert.Equal(t, models.FailureProvider, failure.Kind)
}

func TestBuildMissingTransactionData(t *testing.T) {
	client := buildServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buildResponse{Success: true, Transaction: &BuildResult{}})
	})

	_, err := client.Build(context.Background(), BuildRequest{})
	require.Error(t, err)
}

func TestBuildApprovalFlagWithoutData(t *testing.T) {
	client := buildServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buildResponse{
			Success: true,
			Transaction: &BuildResult{
				TransactionData: TxData{To: "0x6131B5fae19EA4f9D964eAc0408E4408b66337b5", Data: "0x00"},
				NeedsApproval:   true,
			},
		})
	})

	_, err := client.Build(context.Background(), BuildRequest{})
	require.Error(t, err)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "key", nil)
	assert.Error(t, err)

	_, err = NewClient("http://localhost:3000", "", nil)
	assert.Error(t, err)
}
