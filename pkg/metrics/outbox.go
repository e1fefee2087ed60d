package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox outcomes.
const (
	OutboxOutcomePublished = "published"
	OutboxOutcomeRetry     = "retry"
	OutboxOutcomeDLQ       = "dlq"
)

// OutboxMetrics counts rows handled by the outbox worker.
type OutboxMetrics struct {
	processed *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox worker metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_processed_total",
		Help:      "Outbox rows handled by the worker, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(processed)
	return &OutboxMetrics{processed: processed}
}

// Observe counts one handled row.
func (m *OutboxMetrics) Observe(eventType, outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
