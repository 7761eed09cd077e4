package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FetchesTotal counts per-exchange balance fetch outcomes.
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_balance_fetches_total",
			Help: "Number of exchange balance fetch attempts by outcome.",
		},
		[]string{"exchange", "outcome"},
	)

	// FetchDuration observes per-exchange balance fetch latency.
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_balance_fetch_duration_seconds",
			Help:    "Latency of exchange balance fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"exchange"},
	)

	// ChainFetchesTotal counts per-chain RPC fetch outcomes.
	ChainFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_balance_fetches_total",
			Help: "Number of on-chain wallet balance fetches by outcome.",
		},
		[]string{"chain", "outcome"},
	)

	// AggregationsTotal counts completed aggregation requests.
	AggregationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_aggregations_total",
			Help: "Number of completed balance aggregation requests.",
		},
	)
)

// MustRegisterMetrics registers all service collectors with the default
// registry. Call once at startup.
func MustRegisterMetrics() {
	prometheus.MustRegister(FetchesTotal, FetchDuration, ChainFetchesTotal, AggregationsTotal)
}
