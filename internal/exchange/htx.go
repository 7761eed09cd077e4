package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const htxHost = "api.huobi.pro"

// htxDriver queries the HTX (Huobi) account API. HTX conflates spot and
// derivatives accounts under one credential set, so the driver always scopes
// itself to the spot account, regardless of SpotOnly.
type htxDriver struct {
	opts   DriverOptions
	client *fasthttp.Client
	logger *zap.Logger
}

func newHTXDriver(opts DriverOptions, logger *zap.Logger) Driver {
	return &htxDriver{
		opts:   opts,
		client: &fasthttp.Client{},
		logger: logger.Named("HTXDriver"),
	}
}

type htxAccountsResponse struct {
	Status string `json:"status"`
	Data   []struct {
		ID    int64  `json:"id"`
		Type  string `json:"type"`
		State string `json:"state"`
	} `json:"data"`
	ErrMsg string `json:"err-msg"`
}

type htxBalanceResponse struct {
	Status string `json:"status"`
	Data   struct {
		List []struct {
			Currency string `json:"currency"`
			Type     string `json:"type"`
			Balance  string `json:"balance"`
		} `json:"list"`
	} `json:"data"`
	ErrMsg string `json:"err-msg"`
}

func (d *htxDriver) FetchBalance(ctx context.Context) (*RawBalance, error) {
	var accounts htxAccountsResponse
	if err := d.signedGet(ctx, "/v1/account/accounts", &accounts); err != nil {
		return nil, err
	}
	if accounts.Status != "ok" {
		return nil, fmt.Errorf("htx accounts request failed: %s", accounts.ErrMsg)
	}

	var spotAccountID int64
	for _, account := range accounts.Data {
		if account.Type == "spot" && account.State == "working" {
			spotAccountID = account.ID
			break
		}
	}
	if spotAccountID == 0 {
		return nil, fmt.Errorf("no working spot account found on htx")
	}

	var balance htxBalanceResponse
	path := fmt.Sprintf("/v1/account/accounts/%d/balance", spotAccountID)
	if err := d.signedGet(ctx, path, &balance); err != nil {
		return nil, err
	}
	if balance.Status != "ok" {
		return nil, fmt.Errorf("htx balance request failed: %s", balance.ErrMsg)
	}

	raw := NewRawBalance()
	for _, entry := range balance.Data.List {
		amount, _ := strconv.ParseFloat(entry.Balance, 64)
		switch entry.Type {
		case "trade":
			raw.Free[entry.Currency] += amount
		case "frozen":
			raw.Used[entry.Currency] += amount
		default:
			continue
		}
		raw.Total[entry.Currency] = raw.Free[entry.Currency] + raw.Used[entry.Currency]
	}
	return raw, nil
}

// signedGet issues a v2-signature authenticated GET against the HTX API.
func (d *htxDriver) signedGet(ctx context.Context, path string, out interface{}) error {
	params := url.Values{}
	params.Set("AccessKeyId", d.opts.APIKey)
	params.Set("SignatureMethod", "HmacSHA256")
	params.Set("SignatureVersion", "2")
	params.Set("Timestamp", time.Now().UTC().Format("2006-01-02T15:04:05"))

	// url.Values.Encode sorts keys, which the signature scheme requires.
	canonical := fmt.Sprintf("GET\n%s\n%s\n%s", htxHost, path, params.Encode())
	mac := hmac.New(sha256.New, []byte(d.opts.APISecret))
	mac.Write([]byte(canonical))
	params.Set("Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI("https://" + htxHost + path + "?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentType("application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := doWithDeadline(ctx, d.client, req, resp, d.opts.Timeout); err != nil {
		return fmt.Errorf("htx request to %s failed: %w", path, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("htx request to %s returned status %d: %s", path, resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to unmarshal htx response from %s: %w", path, err)
	}
	return nil
}
