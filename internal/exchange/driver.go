package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"balance_service/internal/entity"
)

// RawBalance carries the unfiltered per-currency balance maps a driver
// returns, before zero-total filtering.
type RawBalance struct {
	Free  map[string]float64
	Used  map[string]float64
	Total map[string]float64
}

// NewRawBalance allocates the three maps.
func NewRawBalance() *RawBalance {
	return &RawBalance{
		Free:  make(map[string]float64),
		Used:  make(map[string]float64),
		Total: make(map[string]float64),
	}
}

// Driver is a short-lived exchange API client scoped to a single account and
// a single fetch attempt.
type Driver interface {
	FetchBalance(ctx context.Context) (*RawBalance, error)
}

// DriverOptions configures one driver instance. SpotOnly forces spot market
// scope on exchanges that conflate spot and derivatives balances under one
// account; SkipMarketMetadata suppresses any market-metadata bootstrap call.
type DriverOptions struct {
	APIKey             string
	APISecret          string
	Timeout            time.Duration
	EnableRateLimit    bool
	SpotOnly           bool
	SkipMarketMetadata bool
}

// DriverConstructor builds a fresh driver instance for one attempt.
type DriverConstructor func(opts DriverOptions, logger *zap.Logger) Driver

// Registry maps driver identifiers to constructors. It is populated at
// startup and validated eagerly against the configured exchange mapping.
type Registry struct {
	constructors map[string]DriverConstructor
}

// NewRegistry returns a registry preloaded with the built-in drivers.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]DriverConstructor)}
	r.Register("binance", newBinanceDriver)
	r.Register("gateio", newGateioDriver)
	r.Register("htx", newHTXDriver)
	r.Register("mexc", newMEXCDriver)
	r.Register("cryptocom", newCryptocomDriver)
	return r
}

// Register adds or replaces a driver constructor.
func (r *Registry) Register(id string, ctor DriverConstructor) {
	r.constructors[strings.ToLower(id)] = ctor
}

// Resolve looks up the constructor for a driver identifier.
func (r *Registry) Resolve(id string) (DriverConstructor, bool) {
	ctor, ok := r.constructors[strings.ToLower(id)]
	return ctor, ok
}

// ValidateMapping checks that every driver id in the configured
// exchange-name mapping resolves to a registered constructor. Called at
// startup so an unmapped exchange fails fast, not lazily per request.
func (r *Registry) ValidateMapping(mapping map[string]string) error {
	for exchangeName, driverID := range mapping {
		if _, ok := r.Resolve(driverID); !ok {
			return fmt.Errorf("%w: exchange %q maps to unknown driver id %q",
				entity.ErrConfiguration, exchangeName, driverID)
		}
	}
	return nil
}

// FallbackDriverID converts a canonical exchange name into a driver id when
// the mapping has no explicit entry, e.g. "Gate_io" -> "gateio".
func FallbackDriverID(exchangeName string) string {
	id := strings.ToLower(exchangeName)
	id = strings.ReplaceAll(id, "_", "")
	id = strings.ReplaceAll(id, ".", "")
	return id
}
