package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all domain-specific metrics for the application.
type Registry struct {
	// Classification metrics
	BlockedCalls           *prometheus.CounterVec
	AllowedCalls           prometheus.Counter
	ClassificationDuration prometheus.Histogram

	// Sync metrics
	SyncAttempts     *prometheus.CounterVec
	SyncDuration     prometheus.Histogram
	PendingSyncDepth prometheus.Gauge
}

// NewRegistry registers all metrics on the given registerer. Passing
// prometheus.DefaultRegisterer wires them into the default /metrics
// endpoint; tests pass a fresh prometheus.NewRegistry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		BlockedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callshield",
			Subsystem: "classification",
			Name:      "blocked_calls_total",
			Help:      "Calls blocked by the classification engine, by reason.",
		}, []string{"reason"}),
		AllowedCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "callshield",
			Subsystem: "classification",
			Name:      "allowed_calls_total",
			Help:      "Calls the classification engine let through.",
		}),
		ClassificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callshield",
			Subsystem: "classification",
			Name:      "duration_seconds",
			Help:      "Time spent classifying a single incoming call.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 5, 8),
		}),
		SyncAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callshield",
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Remote sync attempts, by result.",
		}, []string{"result"}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callshield",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full sync cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		PendingSyncDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "callshield",
			Subsystem: "sync",
			Name:      "pending_calls",
			Help:      "Blocked calls waiting to be pushed to the remote store.",
		}),
	}
}
