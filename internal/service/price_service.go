package service

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"balance_service/internal/client"
	"balance_service/internal/config"
)

// PriceService resolves USD prices for asset symbols. Pricing is strictly
// best-effort: any misconfiguration or upstream failure yields an empty map,
// never an error that would fail a balance aggregation.
type PriceService interface {
	GetPrices(ctx context.Context, symbolToPriceID map[string]string) map[string]float64
}

type priceServiceImpl struct {
	cfg    config.CoinGeckoConfig
	client client.CoinGeckoClient
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewPriceService creates a price service backed by the given oracle client.
func NewPriceService(cfg config.CoinGeckoConfig, cgClient client.CoinGeckoClient, logger *zap.Logger) PriceService {
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	return &priceServiceImpl{
		cfg:    cfg,
		client: cgClient,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.Named("PriceService"),
	}
}

// GetPrices returns symbol-to-price for every symbol whose price ID the
// oracle knows. Symbols with no quote are omitted rather than zeroed.
func (s *priceServiceImpl) GetPrices(ctx context.Context, symbolToPriceID map[string]string) map[string]float64 {
	prices := make(map[string]float64)
	if !s.cfg.Enabled || len(symbolToPriceID) == 0 {
		return prices
	}
	if s.cfg.APIKey == "" {
		s.logger.Warn("CoinGecko API key is not configured, skipping price lookup")
		return prices
	}

	quotes := make(map[string]float64)
	var missingIDs []string
	seen := make(map[string]bool)
	for _, priceID := range symbolToPriceID {
		if priceID == "" || seen[priceID] {
			continue
		}
		seen[priceID] = true
		if cached, ok := s.cache.Get(priceID); ok {
			quotes[priceID] = cached.(float64)
			continue
		}
		missingIDs = append(missingIDs, priceID)
	}
	sort.Strings(missingIDs)

	if len(missingIDs) > 0 {
		fetched, err := s.client.SimplePrices(ctx, missingIDs, s.cfg.VsCurrency)
		if err != nil {
			s.logger.Warn("Price lookup failed, proceeding without fresh quotes", zap.Error(err))
		} else {
			for priceID, byCurrency := range fetched {
				price, ok := byCurrency[s.cfg.VsCurrency]
				if !ok {
					continue
				}
				quotes[priceID] = price
				s.cache.Set(priceID, price, gocache.DefaultExpiration)
			}
		}
	}

	for symbol, priceID := range symbolToPriceID {
		if price, ok := quotes[priceID]; ok {
			prices[symbol] = price
		}
	}
	return prices
}
