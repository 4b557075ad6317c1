package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Verifications counts finished verifications by outcome (in_range, out_of_range, or a failure kind)
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "verifications_total",
			Help:      "Total number of completed location verifications",
		},
		[]string{"outcome"},
	)

	// Commits counts commit attempts by result
	Commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "commits_total",
			Help:      "Total number of attendance commit attempts",
		},
		[]string{"result"},
	)

	// Distance observes the measured distance to the anchor
	Distance = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "distance_meters",
			Help:      "Distance between the device and the attendance anchor",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// ProviderLatency observes how long the position provider takes to answer
	ProviderLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "provider_latency_seconds",
			Help:      "Latency of position provider requests",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Superseded counts verification results discarded because a newer one started
	Superseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "superseded_total",
			Help:      "Total number of verification results discarded as stale",
		},
	)

	// ODPassTransitions counts OD pass status changes
	ODPassTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "odpass_transitions_total",
			Help:      "Total number of OD pass status transitions",
		},
		[]string{"status"},
	)

	// AIFallbacks counts AI calls that were answered with the fallback value
	AIFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "ai_fallbacks_total",
			Help:      "Total number of AI requests answered by the fallback",
		},
		[]string{"call"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(Verifications)
		prometheus.DefaultRegisterer.Register(Commits)
		prometheus.DefaultRegisterer.Register(Distance)
		prometheus.DefaultRegisterer.Register(ProviderLatency)
		prometheus.DefaultRegisterer.Register(Superseded)
		prometheus.DefaultRegisterer.Register(ODPassTransitions)
		prometheus.DefaultRegisterer.Register(AIFallbacks)
	})
}
