package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"balance_service/internal/config"
	"balance_service/internal/entity"
	"balance_service/internal/repository"
	"balance_service/internal/service"
)

// BalanceHandler serves the balance aggregation endpoints.
type BalanceHandler struct {
	aggregator service.AggregatorService
	accounts   repository.AccountSource
	cfg        *config.Config
	logger     *zap.Logger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(aggregator service.AggregatorService, accounts repository.AccountSource, cfg *config.Config, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{
		aggregator: aggregator,
		accounts:   accounts,
		cfg:        cfg,
		logger:     logger.Named("BalanceHandler"),
	}
}

// RootHandler returns service metadata and the endpoint listing.
func (h *BalanceHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.cfg.API.Title,
		"version": h.cfg.API.Version,
		"endpoints": gin.H{
			"balances": "/api/balances",
			"summary":  "/api/balances/summary",
			"dex":      "/api/dex/balances",
			"health":   "/health",
			"metrics":  "/metrics",
		},
	})
}

// HealthHandler reports liveness plus credential-store reachability.
func (h *BalanceHandler) HealthHandler(c *gin.Context) {
	status := "healthy"
	database := "connected"
	httpStatus := http.StatusOK

	if err := h.accounts.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Health check database ping failed", zap.Error(err))
		status = "unhealthy"
		database = "disconnected"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": entity.NowUTC(),
	})
}

// AllBalancesHandler runs the full aggregation sweep.
func (h *BalanceHandler) AllBalancesHandler(c *gin.Context) {
	result, err := h.aggregator.AggregateBalances(c.Request.Context())
	if err != nil {
		h.renderAggregationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SummaryHandler serves the grouped per-exchange view.
func (h *BalanceHandler) SummaryHandler(c *gin.Context) {
	summary, err := h.aggregator.Summary(c.Request.Context())
	if err != nil {
		h.renderAggregationError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DexBalancesHandler serves the on-chain-only sweep.
func (h *BalanceHandler) DexBalancesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.DexBalances(c.Request.Context()))
}

func (h *BalanceHandler) renderAggregationError(c *gin.Context, err error) {
	if errors.Is(err, entity.ErrNoAccounts) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No active accounts found"})
		return
	}
	h.logger.Error("Balance aggregation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch balances"})
}
