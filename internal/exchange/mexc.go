package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const mexcBaseURL = "https://api.mexc.com"

// mexcDriver queries the MEXC spot account endpoint. The API mirrors the
// Binance signing scheme with its own key header.
type mexcDriver struct {
	opts   DriverOptions
	client *fasthttp.Client
	logger *zap.Logger
}

func newMEXCDriver(opts DriverOptions, logger *zap.Logger) Driver {
	return &mexcDriver{
		opts:   opts,
		client: &fasthttp.Client{},
		logger: logger.Named("MEXCDriver"),
	}
}

type mexcAccountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (d *mexcDriver) FetchBalance(ctx context.Context) (*RawBalance, error) {
	query := fmt.Sprintf("timestamp=%d&recvWindow=5000", time.Now().UnixMilli())
	mac := hmac.New(sha256.New, []byte(d.opts.APISecret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(mexcBaseURL + "/api/v3/account?" + query + "&signature=" + signature)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-MEXC-APIKEY", d.opts.APIKey)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := doWithDeadline(ctx, d.client, req, resp, d.opts.Timeout); err != nil {
		return nil, fmt.Errorf("mexc account request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("mexc account request returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var account mexcAccountResponse
	if err := json.Unmarshal(resp.Body(), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mexc account response: %w", err)
	}

	raw := NewRawBalance()
	for _, entry := range account.Balances {
		free, _ := strconv.ParseFloat(entry.Free, 64)
		used, _ := strconv.ParseFloat(entry.Locked, 64)
		raw.Free[entry.Asset] = free
		raw.Used[entry.Asset] = used
		raw.Total[entry.Asset] = free + used
	}
	return raw, nil
}
