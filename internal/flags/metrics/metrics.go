// Package metrics holds Prometheus metrics for the flags admin module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks administrative mutations.
type Metrics struct {
	mutations *prometheus.CounterVec
}

// New creates and registers flag admin metrics.
func New() *Metrics {
	return &Metrics{
		mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollout_flag_mutations_total",
			Help: "Administrative flag mutations applied, by action.",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncMutations(action string) {
	m.mutations.WithLabelValues(action).Inc()
}
