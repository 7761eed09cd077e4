package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"balance_service/internal/config"
	"balance_service/internal/entity"
	"balance_service/pkg/metrics"
	"balance_service/pkg/pool"
)

// Fetcher retrieves spot balances for exchange accounts. Every account fetch
// builds a fresh short-lived driver per attempt and bridges the potentially
// blocking call onto the shared bounded worker pool.
type Fetcher struct {
	registry      *Registry
	mapping       map[string]string
	timeout       time.Duration
	retryAttempts int
	retryDelay    time.Duration
	rateLimit     bool
	placeholders  []string
	workers       *pool.WorkerPool
	logger        *zap.Logger
}

// NewFetcher wires the fetcher from configuration.
func NewFetcher(cfg *config.Config, registry *Registry, workers *pool.WorkerPool, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		registry:      registry,
		mapping:       cfg.Exchanges.DriverMapping,
		timeout:       time.Duration(cfg.Exchanges.TimeoutMs) * time.Millisecond,
		retryAttempts: cfg.Exchanges.RetryAttempts,
		retryDelay:    time.Duration(cfg.Exchanges.RetryDelayMs) * time.Millisecond,
		rateLimit:     cfg.Exchanges.RateLimit,
		placeholders:  cfg.Exchanges.PlaceholderAssets,
		workers:       workers,
		logger:        logger.Named("ExchangeFetcher"),
	}
}

// FetchAll fetches every account concurrently. Results preserve the
// caller-supplied account order; a panic inside one account's fetch is
// converted into that account's terminal error and never disturbs siblings.
func (f *Fetcher) FetchAll(ctx context.Context, accounts []entity.Account) []entity.AccountBalance {
	results := make([]entity.AccountBalance, len(accounts))

	eg, childCtx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		i, account := i, account
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					f.logger.Error("Recovered panic during account fetch",
						zap.String("accountID", account.AccountID), zap.Any("panic", r))
					results[i] = entity.NewFailedAccountBalance(account,
						fmt.Sprintf("Failed after 1 attempts: internal error: %v", r), f.placeholders)
				}
			}()
			results[i] = f.FetchWithRetry(childCtx, account)
			return nil
		})
	}
	// Goroutines always return nil; Wait only synchronizes completion.
	_ = eg.Wait()

	return results
}

// FetchWithRetry applies the differentiated retry policy:
//   - timeout-class errors fail immediately, no retry
//   - unsupported exchanges fail immediately, no retry
//   - everything else retries up to the configured attempt count with a short
//     fixed delay between attempts
//
// A success at any attempt returns immediately. Exhausted retries yield a
// terminal AccountBalance carrying the attempt count and last error.
func (f *Fetcher) FetchWithRetry(ctx context.Context, account entity.Account) entity.AccountBalance {
	maxAttempts := f.retryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		result, err := f.fetchOnce(ctx, account)
		if err == nil {
			return result
		}
		lastErr = err

		if entity.IsTimeoutError(err) || errors.Is(err, entity.ErrUnsupportedExchange) {
			break
		}
		if attempt < maxAttempts {
			time.Sleep(f.retryDelay)
		}
	}

	f.logger.Warn("Account fetch exhausted",
		zap.String("exchange", account.Exchange),
		zap.String("accountID", account.AccountID),
		zap.Int("attempts", attempt),
		zap.Error(lastErr))

	return entity.NewFailedAccountBalance(account,
		fmt.Sprintf("Failed after %d attempts: %v", attempt, lastErr), f.placeholders)
}

// fetchOnce performs a single attempt: resolve the driver, run the balance
// query on the worker pool under the per-call deadline, and filter out
// zero-total assets.
func (f *Fetcher) fetchOnce(ctx context.Context, account entity.Account) (entity.AccountBalance, error) {
	driverID, ok := f.mapping[account.Exchange]
	if !ok {
		driverID = FallbackDriverID(account.Exchange)
	}
	ctor, ok := f.registry.Resolve(driverID)
	if !ok {
		return entity.AccountBalance{}, fmt.Errorf("%w: %s (driver id %q)",
			entity.ErrUnsupportedExchange, account.Exchange, driverID)
	}

	driver := ctor(DriverOptions{
		APIKey:             account.APIKey,
		APISecret:          account.APISecret,
		Timeout:            f.timeout,
		EnableRateLimit:    f.rateLimit,
		SpotOnly:           driverID == "htx",
		SkipMarketMetadata: true,
	}, f.logger)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	var raw *RawBalance
	err := f.workers.Do(callCtx, func() error {
		var fetchErr error
		raw, fetchErr = driver.FetchBalance(callCtx)
		return fetchErr
	})
	elapsed := time.Since(start)
	metrics.FetchDuration.WithLabelValues(account.Exchange).Observe(elapsed.Seconds())

	if err != nil {
		metrics.FetchesTotal.WithLabelValues(account.Exchange, "error").Inc()
		f.logger.Warn("Balance fetch attempt failed",
			zap.String("exchange", account.Exchange),
			zap.String("accountName", account.AccountName),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return entity.AccountBalance{}, err
	}

	balances := filterZeroTotals(raw)
	metrics.FetchesTotal.WithLabelValues(account.Exchange, "success").Inc()
	f.logger.Info("Balance fetch succeeded",
		zap.String("exchange", account.Exchange),
		zap.String("accountName", account.AccountName),
		zap.Duration("elapsed", elapsed),
		zap.Int("currencies", len(balances)))

	return entity.AccountBalance{
		AccountID:   account.AccountID,
		AccountName: account.AccountName,
		Exchange:    account.Exchange,
		Balances:    balances,
		Timestamp:   entity.NowUTC(),
	}, nil
}

// filterZeroTotals keeps only assets with a positive total.
func filterZeroTotals(raw *RawBalance) map[string]entity.BalanceEntry {
	balances := make(map[string]entity.BalanceEntry)
	for currency, total := range raw.Total {
		if total <= 0 {
			continue
		}
		balances[currency] = entity.BalanceEntry{
			Free:  raw.Free[currency],
			Used:  raw.Used[currency],
			Total: total,
		}
	}
	return balances
}
