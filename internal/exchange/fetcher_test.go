package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"balance_service/internal/config"
	"balance_service/internal/entity"
	"balance_service/pkg/pool"
)

type fakeDriver struct {
	fetch func(ctx context.Context) (*RawBalance, error)
}

func (d *fakeDriver) FetchBalance(ctx context.Context) (*RawBalance, error) {
	return d.fetch(ctx)
}

func fakeConstructor(fetch func(ctx context.Context) (*RawBalance, error)) DriverConstructor {
	return func(opts DriverOptions, logger *zap.Logger) Driver {
		return &fakeDriver{fetch: fetch}
	}
}

func newTestFetcher(t *testing.T, registry *Registry) (*Fetcher, *pool.WorkerPool) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Exchanges.TimeoutMs = 5000
	cfg.Exchanges.RetryAttempts = 3
	cfg.Exchanges.RetryDelayMs = 1
	cfg.Exchanges.PlaceholderAssets = []string{"USDT", "ALI"}
	cfg.Exchanges.DriverMapping = map[string]string{"Binance": "binance"}

	workers := pool.New(4)
	t.Cleanup(workers.Close)
	return NewFetcher(cfg, registry, workers, zap.NewNop()), workers
}

func testAccount(exchange string) entity.Account {
	return entity.Account{
		AccountID:   "alice-" + exchange + "-main",
		AccountName: "main",
		Exchange:    exchange,
		APIKey:      "key",
		APISecret:   "secret",
	}
}

func TestFetchWithRetrySuccessShortCircuits(t *testing.T) {
	var calls int32
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		atomic.AddInt32(&calls, 1)
		raw := NewRawBalance()
		raw.Free["ETH"] = 1.5
		raw.Total["ETH"] = 1.5
		return raw, nil
	}))
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("Binance"))

	require.False(t, result.Failed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.5, result.Balances["ETH"].Total)
	assert.NotEmpty(t, result.Timestamp)
}

func TestFetchWithRetryTimeoutNotRetried(t *testing.T) {
	var calls int32
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		atomic.AddInt32(&calls, 1)
		return nil, context.DeadlineExceeded
	}))
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("Binance"))

	require.True(t, result.Failed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, result.Error, "Failed after 1 attempts")
	assert.Contains(t, result.Error, "deadline exceeded")
}

func TestFetchWithRetryGenericErrorRetried(t *testing.T) {
	var calls int32
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("status 500: internal error")
	}))
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("Binance"))

	require.True(t, result.Failed())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, result.Error, "Failed after 3 attempts")
	assert.Contains(t, result.Error, "status 500")
}

func TestFetchWithRetryPlaceholderBalances(t *testing.T) {
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		return nil, errors.New("boom")
	}))
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("Binance"))

	require.True(t, result.Failed())
	require.Len(t, result.Balances, 2)
	for _, asset := range []string{"USDT", "ALI"} {
		entry, ok := result.Balances[asset]
		require.True(t, ok, asset)
		assert.Zero(t, entry.Total)
	}
}

func TestFetchWithRetryUnsupportedExchange(t *testing.T) {
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("NoSuchVenue"))

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "Failed after 1 attempts")
	assert.Contains(t, result.Error, "NoSuchVenue")
}

func TestFetchOnceDropsZeroTotals(t *testing.T) {
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		raw := NewRawBalance()
		raw.Free["BTC"] = 0
		raw.Total["BTC"] = 0
		raw.Free["ETH"] = 1.0
		raw.Used["ETH"] = 0.5
		raw.Total["ETH"] = 1.5
		return raw, nil
	}))
	fetcher, _ := newTestFetcher(t, registry)

	result := fetcher.FetchWithRetry(context.Background(), testAccount("Binance"))

	require.False(t, result.Failed())
	require.Len(t, result.Balances, 1)
	assert.Equal(t, entity.BalanceEntry{Free: 1.0, Used: 0.5, Total: 1.5}, result.Balances["ETH"])
}

func TestFetchAllPreservesOrderAndIsolation(t *testing.T) {
	registry := &Registry{constructors: map[string]DriverConstructor{}}
	registry.Register("binance", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		raw := NewRawBalance()
		raw.Free["USDT"] = 42
		raw.Total["USDT"] = 42
		return raw, nil
	}))
	registry.Register("gateio", fakeConstructor(func(ctx context.Context) (*RawBalance, error) {
		panic("driver blew up")
	}))
	fetcher, _ := newTestFetcher(t, registry)

	accounts := []entity.Account{
		testAccount("Binance"),
		testAccount("Gate_io"),
		testAccount("Binance"),
	}
	results := fetcher.FetchAll(context.Background(), accounts)

	require.Len(t, results, 3)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Contains(t, results[1].Error, "driver blew up")
	assert.False(t, results[2].Failed())
	for i, account := range accounts {
		assert.Equal(t, account.AccountID, results[i].AccountID)
	}
}
