package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"balance_service/internal/config"
	"balance_service/internal/entity"
	"balance_service/internal/repository"
	"balance_service/pkg/metrics"
)

// ExchangeFetcher retrieves balances for a set of exchange accounts.
type ExchangeFetcher interface {
	FetchAll(ctx context.Context, accounts []entity.Account) []entity.AccountBalance
}

// ChainBalanceFetcher sweeps configured on-chain wallets.
type ChainBalanceFetcher interface {
	FetchAllChains(ctx context.Context) map[string][]entity.ChainWalletBalance
}

// AggregatorService composes exchange balances, on-chain balances and prices
// into the response the REST layer serves.
type AggregatorService interface {
	AggregateBalances(ctx context.Context) (*entity.AggregateResult, error)
	DexBalances(ctx context.Context) *entity.DexResult
	Summary(ctx context.Context) (*entity.BalancesSummary, error)
}

type aggregatorServiceImpl struct {
	accounts    repository.AccountSource
	exchanges   ExchangeFetcher
	chains      ChainBalanceFetcher
	prices      PriceService
	priceIDs    map[string]string
	fixedPrices map[string]float64
	logger      *zap.Logger
}

// NewAggregatorService wires the aggregator. The symbol-to-priceID and
// fixed-price maps are derived once from the chain token configuration.
func NewAggregatorService(
	accounts repository.AccountSource,
	exchanges ExchangeFetcher,
	chains ChainBalanceFetcher,
	prices PriceService,
	chainCfgs []config.ChainConfig,
	logger *zap.Logger,
) AggregatorService {
	priceIDs := make(map[string]string)
	fixedPrices := make(map[string]float64)
	for _, chain := range chainCfgs {
		for symbol, token := range chain.Tokens {
			if token.PriceID != "" {
				priceIDs[symbol] = token.PriceID
			}
			if token.FixedPrice > 0 {
				fixedPrices[symbol] = token.FixedPrice
			}
		}
	}
	return &aggregatorServiceImpl{
		accounts:    accounts,
		exchanges:   exchanges,
		chains:      chains,
		prices:      prices,
		priceIDs:    priceIDs,
		fixedPrices: fixedPrices,
		logger:      logger.Named("AggregatorService"),
	}
}

// AggregateBalances runs the full sweep: active accounts from the credential
// store, exchange balances, on-chain balances and prices, all fetched
// concurrently and merged into a single result.
func (s *aggregatorServiceImpl) AggregateBalances(ctx context.Context) (*entity.AggregateResult, error) {
	accounts, err := s.accounts.ActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, entity.ErrNoAccounts
	}

	var (
		accountBalances []entity.AccountBalance
		chainBalances   map[string][]entity.ChainWalletBalance
		priceMap        map[string]float64
	)

	eg, childCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		accountBalances = s.exchanges.FetchAll(childCtx, accounts)
		return nil
	})
	eg.Go(func() error {
		chainBalances = s.chains.FetchAllChains(childCtx)
		return nil
	})
	eg.Go(func() error {
		priceMap = s.resolvePrices(childCtx)
		return nil
	})
	_ = eg.Wait()

	successful := 0
	for _, balance := range accountBalances {
		if !balance.Failed() {
			successful++
		}
	}

	metrics.AggregationsTotal.Inc()
	s.logger.Info("Aggregation complete",
		zap.Int("totalAccounts", len(accounts)),
		zap.Int("successful", successful),
		zap.Int("failed", len(accounts)-successful))

	return &entity.AggregateResult{
		Success:           true,
		Accounts:          accountBalances,
		Chains:            chainBalances,
		Prices:            priceMap,
		TotalAccounts:     len(accounts),
		SuccessfulFetches: successful,
		FailedFetches:     len(accounts) - successful,
		Timestamp:         entity.NowUTC(),
	}, nil
}

// DexBalances sweeps only the on-chain wallets. It cannot fail: an empty
// chain map is a valid result.
func (s *aggregatorServiceImpl) DexBalances(ctx context.Context) *entity.DexResult {
	var (
		chainBalances map[string][]entity.ChainWalletBalance
		priceMap      map[string]float64
	)

	eg, childCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		chainBalances = s.chains.FetchAllChains(childCtx)
		return nil
	})
	eg.Go(func() error {
		priceMap = s.resolvePrices(childCtx)
		return nil
	})
	_ = eg.Wait()

	return &entity.DexResult{
		Success:   true,
		Chains:    chainBalances,
		Prices:    priceMap,
		Timestamp: entity.NowUTC(),
	}
}

// Summary derives the grouped exchange -> account -> currency view from a
// fresh aggregation, with no additional upstream calls.
func (s *aggregatorServiceImpl) Summary(ctx context.Context) (*entity.BalancesSummary, error) {
	result, err := s.AggregateBalances(ctx)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]map[string]map[string]entity.CurrencyTotals)
	byExchange := make(map[string]map[string]float64)
	overall := make(map[string]float64)

	// Failed accounts appear in the grouped view too, carrying their zeroed
	// placeholder entries; zeros contribute nothing to the totals.
	for _, account := range result.Accounts {
		if _, ok := summary[account.Exchange]; !ok {
			summary[account.Exchange] = make(map[string]map[string]entity.CurrencyTotals)
			byExchange[account.Exchange] = make(map[string]float64)
		}
		currencies := make(map[string]entity.CurrencyTotals, len(account.Balances))
		for currency, entry := range account.Balances {
			currencies[currency] = entity.CurrencyTotals{Total: entry.Total, Free: entry.Free}
			byExchange[account.Exchange][currency] += entry.Total
			overall[currency] += entry.Total
		}
		summary[account.Exchange][account.AccountName] = currencies
	}

	return &entity.BalancesSummary{
		Success: true,
		Summary: summary,
		Totals: entity.SummaryTotals{
			ByExchange: byExchange,
			Overall:    overall,
		},
		Prices:    result.Prices,
		Timestamp: result.Timestamp,
	}, nil
}

// resolvePrices merges oracle quotes with configured fixed prices. A fixed
// price never overrides a live quote for the same symbol.
func (s *aggregatorServiceImpl) resolvePrices(ctx context.Context) map[string]float64 {
	priceMap := s.prices.GetPrices(ctx, s.priceIDs)
	for symbol, price := range s.fixedPrices {
		if _, ok := priceMap[symbol]; !ok {
			priceMap[symbol] = price
		}
	}
	return priceMap
}
