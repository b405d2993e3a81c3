package metrics

import "github.com/prometheus/client_golang/prometheus"

// Oracle Prometheus metrics.
var (
	OracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "oracle_requests_total",
			Help:      "Total number of oracle requests",
		},
		[]string{"provider", "model", "status"},
	)

	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "itemmatch",
			Name:      "oracle_request_duration_seconds",
			Help:      "Oracle request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	OracleTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "oracle_tokens_total",
			Help:      "Total oracle tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	OracleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "oracle_errors_total",
			Help:      "Total oracle errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	OracleBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "itemmatch",
			Name:      "oracle_budget_tokens_remaining",
			Help:      "Remaining oracle token budget",
		},
		[]string{"provider", "period"},
	)
)

// Comparison pipeline metrics.
var (
	ComparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "comparisons_total",
			Help:      "Total comparisons by outcome",
		},
		[]string{"outcome"}, // "ok" or a failure kind
	)

	ComparisonDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "itemmatch",
			Name:      "comparison_duration_seconds",
			Help:      "End-to-end comparison duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ComparisonDroppedEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "comparison_dropped_entries_total",
			Help:      "Oracle match entries discarded during validation",
		},
		[]string{"reason"},
	)

	ComparisonMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "itemmatch",
			Name:      "comparison_matches_total",
			Help:      "Matches returned to callers after threshold filtering",
		},
	)
)

var oracleMetricsRegistered bool

// RegisterOracleMetrics registers Prometheus oracle and comparison metrics. Must be called once from main.
func RegisterOracleMetrics() {
	if oracleMetricsRegistered {
		return
	}
	prometheus.MustRegister(OracleRequestsTotal)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(OracleTokensTotal)
	prometheus.MustRegister(OracleErrorsTotal)
	prometheus.MustRegister(OracleBudgetTokensRemaining)
	prometheus.MustRegister(ComparisonsTotal)
	prometheus.MustRegister(ComparisonDuration)
	prometheus.MustRegister(ComparisonDroppedEntriesTotal)
	prometheus.MustRegister(ComparisonMatchesTotal)
	oracleMetricsRegistered = true
}
