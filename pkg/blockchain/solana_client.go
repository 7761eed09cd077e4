package blockchain

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"balance_service/internal/config"
	"balance_service/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const lamportsPerSOLExponent = 9

// SolanaClient talks plain JSON-RPC over fasthttp. The Solana RPC surface used
// here (getBalance, getTokenAccountBalance, getTokenAccountsByOwner) is small
// enough that a dedicated SDK buys nothing over hand-built requests.
type SolanaClient struct {
	client  *fasthttp.Client
	rpcURL  string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSolanaClient builds a client for the configured RPC endpoint.
func NewSolanaClient(chain config.ChainConfig, logger *zap.Logger) *SolanaClient {
	return &SolanaClient{
		client:  &fasthttp.Client{},
		rpcURL:  chain.RPCURL,
		timeout: time.Duration(chain.RPCTimeoutMs) * time.Millisecond,
		limiter: rate.NewLimiter(rate.Limit(chain.RateLimit), chain.BurstLimit),
		logger:  logger.Named("SolanaClient").With(zap.String("chain", chain.Name)),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenAmount struct {
	Amount   string   `json:"amount"`
	Decimals int32    `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

// NativeBalance returns the SOL balance of a wallet.
func (c *SolanaClient) NativeBalance(ctx context.Context, walletAddress string) (decimal.Decimal, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []interface{}{walletAddress}, &result); err != nil {
		return decimal.Zero, fmt.Errorf("getBalance for %s: %w", walletAddress, err)
	}
	return decimal.NewFromInt(int64(result.Value)).Shift(-lamportsPerSOLExponent), nil
}

// TokenAccountBalance returns the balance held by a known SPL token account.
// The RPC's pre-scaled uiAmount is preferred; the raw amount plus decimals is
// the fallback when the node omits it.
func (c *SolanaClient) TokenAccountBalance(ctx context.Context, tokenAccount string) (decimal.Decimal, error) {
	var result struct {
		Value tokenAmount `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountBalance", []interface{}{tokenAccount}, &result); err != nil {
		return decimal.Zero, fmt.Errorf("getTokenAccountBalance for %s: %w", tokenAccount, err)
	}
	if result.Value.UIAmount != nil {
		return decimal.NewFromFloat(*result.Value.UIAmount), nil
	}
	return utils.RawAmountToDecimal(result.Value.Amount, result.Value.Decimals), nil
}

// TokenBalanceByMint sums the balances of every token account the wallet owns
// for the given mint. Used when no token account address is configured.
func (c *SolanaClient) TokenBalanceByMint(ctx context.Context, walletAddress, mintAddress string) (decimal.Decimal, error) {
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount tokenAmount `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []interface{}{
		walletAddress,
		map[string]string{"mint": mintAddress},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return decimal.Zero, fmt.Errorf("getTokenAccountsByOwner for %s mint %s: %w", walletAddress, mintAddress, err)
	}

	total := decimal.Zero
	for _, acc := range result.Value {
		amount := acc.Account.Data.Parsed.Info.TokenAmount
		if amount.UIAmount != nil {
			total = total.Add(decimal.NewFromFloat(*amount.UIAmount))
			continue
		}
		total = total.Add(utils.RawAmountToDecimal(amount.Amount, amount.Decimals))
	}
	return total, nil
}

func (c *SolanaClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(c.rpcURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Error("Solana RPC request failed", zap.String("method", method), zap.Error(err))
		return fmt.Errorf("failed to execute %s request: %w", method, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("%s request failed with status %d: %s", method, resp.StatusCode(), string(resp.Body()))
	}

	var envelope struct {
		Result jsoniter.RawMessage `json:"result"`
		Error  *rpcError           `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s RPC error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
