package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics exports the results of the last reconciliation scans.
type LedgerMetrics struct {
	driftPhones prometheus.Gauge
	dlqEntries  prometheus.Gauge
}

// NewLedgerMetrics registers the reconciliation gauges on reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	driftPhones := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "customer_ledger_drift_phones",
		Help:      "Phones whose ledger counters disagreed with their orders on the last scan.",
	})
	dlqEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_dlq_entries",
		Help:      "Dead-lettered outbox events seen on the last scan, capped at the scan batch size.",
	})
	reg.MustRegister(driftPhones, dlqEntries)
	return &LedgerMetrics{driftPhones: driftPhones, dlqEntries: dlqEntries}
}

// SetDriftPhones records how many phones drifted on the last scan.
func (m *LedgerMetrics) SetDriftPhones(n int) {
	if m == nil || m.driftPhones == nil {
		return
	}
	m.driftPhones.Set(float64(n))
}

// SetDLQEntries records how many dead-lettered events await reconciliation.
func (m *LedgerMetrics) SetDLQEntries(n int) {
	if m == nil || m.dlqEntries == nil {
		return
	}
	m.dlqEntries.Set(float64(n))
}
