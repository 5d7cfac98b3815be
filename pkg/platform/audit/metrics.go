package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ledger health. Append failures on the best-effort path are
// the signal that the trail is degrading silently, so they get their own
// counter rather than hiding in logs.
type Metrics struct {
	eventsAppended *prometheus.CounterVec
	appendFailures *prometheus.CounterVec
}

// NewMetrics creates and registers ledger metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		eventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollout_audit_events_appended_total",
			Help: "Audit events durably appended, by action.",
		}, []string{"action"}),
		appendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollout_audit_append_failures_total",
			Help: "Audit append failures, by action.",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncEventsAppended(action string) {
	m.eventsAppended.WithLabelValues(action).Inc()
}

func (m *Metrics) IncAppendFailures(action string) {
	m.appendFailures.WithLabelValues(action).Inc()
}
