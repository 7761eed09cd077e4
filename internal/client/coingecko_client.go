package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"balance_service/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CoinGeckoClient defines the interface for the CoinGecko simple price API.
type CoinGeckoClient interface {
	SimplePrices(ctx context.Context, priceIDs []string, vsCurrency string) (map[string]map[string]float64, error)
}

// coinGeckoClientImpl is the implementation of CoinGeckoClient.
type coinGeckoClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoinGeckoClient creates a new instance of coinGeckoClientImpl.
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) CoinGeckoClient {
	return &coinGeckoClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("CoinGeckoClient"),
	}
}

// SimplePrices implements the CoinGeckoClient interface. The result maps
// price ID to currency to price, mirroring the /simple/price response shape.
func (c *coinGeckoClientImpl) SimplePrices(ctx context.Context, priceIDs []string, vsCurrency string) (map[string]map[string]float64, error) {
	if len(priceIDs) == 0 {
		return map[string]map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(priceIDs, ","))
	query.Set("vs_currencies", vsCurrency)
	requestURL := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())

	c.logger.Debug("Requesting prices from CoinGecko",
		zap.Int("idCount", len(priceIDs)), zap.String("vsCurrency", vsCurrency))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Error("Failed to execute request to CoinGecko", zap.Error(err))
		return nil, fmt.Errorf("failed to execute CoinGecko request: %w", err)
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("CoinGecko API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody))
		return nil, fmt.Errorf("%w: status %d: %s", entity.ErrUpstreamPricing, resp.StatusCode(), string(rawBody))
	}

	var prices map[string]map[string]float64
	if err := json.Unmarshal(rawBody, &prices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CoinGecko response: %w", err)
	}

	c.logger.Debug("Successfully fetched prices from CoinGecko", zap.Int("priceCount", len(prices)))
	return prices, nil
}
