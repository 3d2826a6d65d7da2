// internal/utils/metrics.go
package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics
var (
	GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptstudio",
			Subsystem: "gateway",
			Name:      "generation_requests_total",
			Help:      "Generation calls by family, provider and outcome",
		},
		[]string{"family", "provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scriptstudio",
			Subsystem: "gateway",
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock time of generation calls, polling included",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		},
		[]string{"family", "provider"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptstudio",
			Subsystem: "gateway",
			Name:      "provider_errors_total",
			Help:      "Gateway failures by provider and error kind",
		},
		[]string{"provider", "error_type"},
	)

	PollAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptstudio",
			Subsystem: "gateway",
			Name:      "poll_attempts_total",
			Help:      "Status endpoint checks by provider and observed state",
		},
		[]string{"provider", "state"},
	)

	RegistryFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptstudio",
			Subsystem: "registry",
			Name:      "fallbacks_total",
			Help:      "Remote model list fetches that fell back to the built-in list",
		},
		[]string{"reason"},
	)
)
