package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"balance_service/internal/config"
)

type fakeCoinGecko struct {
	calls  int32
	prices map[string]map[string]float64
	err    error
}

func (f *fakeCoinGecko) SimplePrices(ctx context.Context, priceIDs []string, vsCurrency string) (map[string]map[string]float64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func enabledConfig() config.CoinGeckoConfig {
	return config.CoinGeckoConfig{
		Enabled:         true,
		APIKey:          "test-key",
		VsCurrency:      "usd",
		CacheTTLMinutes: 1,
	}
}

func TestGetPricesDisabledReturnsEmpty(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	cg := &fakeCoinGecko{}
	svc := NewPriceService(cfg, cg, zap.NewNop())

	prices := svc.GetPrices(context.Background(), map[string]string{"ETH": "ethereum"})

	assert.Empty(t, prices)
	assert.Zero(t, atomic.LoadInt32(&cg.calls))
}

func TestGetPricesMissingAPIKeyReturnsEmpty(t *testing.T) {
	cfg := enabledConfig()
	cfg.APIKey = ""
	cg := &fakeCoinGecko{}
	svc := NewPriceService(cfg, cg, zap.NewNop())

	prices := svc.GetPrices(context.Background(), map[string]string{"ETH": "ethereum"})

	assert.Empty(t, prices)
	assert.Zero(t, atomic.LoadInt32(&cg.calls))
}

func TestGetPricesMapsSymbolsAndOmitsMissing(t *testing.T) {
	cg := &fakeCoinGecko{prices: map[string]map[string]float64{
		"ethereum": {"usd": 3200.5},
	}}
	svc := NewPriceService(enabledConfig(), cg, zap.NewNop())

	prices := svc.GetPrices(context.Background(), map[string]string{
		"ETH":     "ethereum",
		"OBSCURE": "no-such-coin",
	})

	require.Len(t, prices, 1)
	assert.Equal(t, 3200.5, prices["ETH"])
	_, ok := prices["OBSCURE"]
	assert.False(t, ok)
}

func TestGetPricesUsesCacheOnSecondCall(t *testing.T) {
	cg := &fakeCoinGecko{prices: map[string]map[string]float64{
		"ethereum": {"usd": 3200.5},
	}}
	svc := NewPriceService(enabledConfig(), cg, zap.NewNop())
	symbols := map[string]string{"ETH": "ethereum"}

	first := svc.GetPrices(context.Background(), symbols)
	second := svc.GetPrices(context.Background(), symbols)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&cg.calls))
}

func TestGetPricesUpstreamFailureYieldsEmpty(t *testing.T) {
	cg := &fakeCoinGecko{err: errors.New("rate limited")}
	svc := NewPriceService(enabledConfig(), cg, zap.NewNop())

	prices := svc.GetPrices(context.Background(), map[string]string{"ETH": "ethereum"})

	assert.Empty(t, prices)
}
