package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Calculation outcomes
const (
	outcomeCreated       = "created"
	outcomeReplayed      = "replayed"
	outcomeRecovered     = "conflict_recovered"
	outcomeNoFactor      = "no_factor"
	outcomeInvalid       = "invalid_input"
	outcomeInconsistent  = "race_inconsistency"
	outcomePersistFailed = "persistence_failure"
)

var (
	// Compute calls partitioned by category and outcome
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emission_calculations_total",
			Help: "Total number of compute requests by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	calculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emission_calculation_duration_seconds",
			Help:    "Compute latency in seconds by category",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)
)

func recordOutcome(category, outcome string) {
	calculationsTotal.WithLabelValues(category, outcome).Inc()
}
