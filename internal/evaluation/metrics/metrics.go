// Package metrics holds Prometheus metrics for flag evaluation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks evaluation outcomes and latency.
type Metrics struct {
	evaluations *prometheus.CounterVec
	failSafe    prometheus.Counter
	duration    prometheus.Histogram
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// New creates and registers evaluation metrics.
func New() *Metrics {
	return &Metrics{
		evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollout_evaluations_total",
			Help: "Flag evaluations served, by reason and outcome.",
		}, []string{"reason", "enabled"}),
		failSafe: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollout_evaluation_fail_safe_total",
			Help: "Evaluations that fell back to disabled because the flag store was unavailable.",
		}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollout_evaluation_duration_seconds",
			Help:    "Latency of a single flag evaluation.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollout_evaluation_cache_hits_total",
			Help: "Flag snapshot reads served from the cache.",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollout_evaluation_cache_misses_total",
			Help: "Flag snapshot reads that fell through to the store.",
		}),
	}
}

func (m *Metrics) IncEvaluation(reason string, enabled bool) {
	v := "false"
	if enabled {
		v = "true"
	}
	m.evaluations.WithLabelValues(reason, v).Inc()
}

func (m *Metrics) IncFailSafe() {
	m.failSafe.Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) IncCacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) IncCacheMiss() { m.cacheMisses.Inc() }
