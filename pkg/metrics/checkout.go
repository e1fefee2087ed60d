package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks order placement outcomes.
type CheckoutMetrics struct {
	placed     *prometheus.CounterVec
	failures   *prometheus.CounterVec
	deferred   *prometheus.CounterVec
	collisions prometheus.Counter
	replays    prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders committed by checkout, by payment method.",
	}, []string{"payment_method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_failures_total",
		Help:      "Checkouts that ended in the failed state, by the stage that failed.",
	}, []string{"stage"})
	deferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_deferred_bookkeeping_total",
		Help:      "Bookkeeping steps handed to the retry queue, by stage.",
	}, []string{"stage"})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_number_collisions_total",
		Help:      "Persistence attempts retried because the order number was taken.",
	})
	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_replays_total",
		Help:      "Checkouts answered from an existing order with the same idempotency key.",
	})
	reg.MustRegister(placed, failures, deferred, collisions, replays)
	return &CheckoutMetrics{
		placed:     placed,
		failures:   failures,
		deferred:   deferred,
		collisions: collisions,
		replays:    replays,
	}
}

func (m *CheckoutMetrics) IncPlaced(paymentMethod string) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *CheckoutMetrics) IncFailure(stage string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (m *CheckoutMetrics) IncDeferred(stage string) {
	if m == nil || m.deferred == nil {
		return
	}
	m.deferred.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (m *CheckoutMetrics) IncCollision() {
	if m == nil || m.collisions == nil {
		return
	}
	m.collisions.Inc()
}

func (m *CheckoutMetrics) IncReplay() {
	if m == nil || m.replays == nil {
		return
	}
	m.replays.Inc()
}
