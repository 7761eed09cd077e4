package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	gateioBaseURL      = "https://api.gateio.ws"
	gateioAccountsPath = "/api/v4/spot/accounts"
)

// gateioDriver queries the Gate.io v4 spot accounts endpoint. Requests are
// signed with HMAC-SHA512 over method, path, query, body hash and timestamp.
type gateioDriver struct {
	opts   DriverOptions
	client *fasthttp.Client
	logger *zap.Logger
}

func newGateioDriver(opts DriverOptions, logger *zap.Logger) Driver {
	return &gateioDriver{
		opts:   opts,
		client: &fasthttp.Client{},
		logger: logger.Named("GateioDriver"),
	}
}

type gateioAccountEntry struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

func (d *gateioDriver) FetchBalance(ctx context.Context) (*RawBalance, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	emptyBodyHash := sha512.Sum512(nil)
	signaturePayload := fmt.Sprintf("GET\n%s\n\n%s\n%s", gateioAccountsPath, hex.EncodeToString(emptyBodyHash[:]), timestamp)
	mac := hmac.New(sha512.New, []byte(d.opts.APISecret))
	mac.Write([]byte(signaturePayload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(gateioBaseURL + gateioAccountsPath)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("KEY", d.opts.APIKey)
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("SIGN", signature)
	req.Header.SetContentType("application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := doWithDeadline(ctx, d.client, req, resp, d.opts.Timeout); err != nil {
		return nil, fmt.Errorf("gate.io accounts request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("gate.io accounts request returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var entries []gateioAccountEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gate.io accounts response: %w", err)
	}

	raw := NewRawBalance()
	for _, entry := range entries {
		free, _ := strconv.ParseFloat(entry.Available, 64)
		used, _ := strconv.ParseFloat(entry.Locked, 64)
		raw.Free[entry.Currency] = free
		raw.Used[entry.Currency] = used
		raw.Total[entry.Currency] = free + used
	}
	return raw, nil
}
