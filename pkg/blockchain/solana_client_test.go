package blockchain

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"balance_service/internal/config"
)

func newSolanaTestServer(t *testing.T, handler func(method string) string) (*httptest.Server, *SolanaClient) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req.Method)))
	}))
	t.Cleanup(server.Close)

	client := NewSolanaClient(config.ChainConfig{
		Name:         "Solana",
		Kind:         "solana",
		RPCURL:       server.URL,
		RPCTimeoutMs: 2000,
		RateLimit:    100,
		BurstLimit:   10,
	}, zap.NewNop())
	return server, client
}

func TestSolanaNativeBalance(t *testing.T) {
	_, client := newSolanaTestServer(t, func(method string) string {
		require.Equal(t, "getBalance", method)
		return `{"jsonrpc":"2.0","result":{"context":{"slot":1},"value":2000000000},"id":1}`
	})

	amount, err := client.NativeBalance(context.Background(), "wallet111")
	require.NoError(t, err)
	assert.Equal(t, "2", amount.String())
}

func TestSolanaTokenAccountBalancePrefersUIAmount(t *testing.T) {
	_, client := newSolanaTestServer(t, func(method string) string {
		require.Equal(t, "getTokenAccountBalance", method)
		return `{"jsonrpc":"2.0","result":{"value":{"amount":"1500000","decimals":6,"uiAmount":1.5}},"id":1}`
	})

	amount, err := client.TokenAccountBalance(context.Background(), "tokenAcc111")
	require.NoError(t, err)
	assert.Equal(t, "1.5", amount.String())
}

func TestSolanaTokenAccountBalanceRawFallback(t *testing.T) {
	_, client := newSolanaTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","result":{"value":{"amount":"2500000","decimals":6,"uiAmount":null}},"id":1}`
	})

	amount, err := client.TokenAccountBalance(context.Background(), "tokenAcc111")
	require.NoError(t, err)
	assert.Equal(t, "2.5", amount.String())
}

func TestSolanaTokenBalanceByMintSumsAccounts(t *testing.T) {
	_, client := newSolanaTestServer(t, func(method string) string {
		require.Equal(t, "getTokenAccountsByOwner", method)
		return `{"jsonrpc":"2.0","result":{"value":[
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"1000000","decimals":6,"uiAmount":1.0}}}}}},
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"amount":"250000","decimals":6,"uiAmount":0.25}}}}}}
		]},"id":1}`
	})

	amount, err := client.TokenBalanceByMint(context.Background(), "wallet111", "mint111")
	require.NoError(t, err)
	assert.Equal(t, "1.25", amount.String())
}

func TestSolanaRPCErrorSurfaced(t *testing.T) {
	_, client := newSolanaTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid param"},"id":1}`
	})

	_, err := client.NativeBalance(context.Background(), "bad-wallet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid param")
}
