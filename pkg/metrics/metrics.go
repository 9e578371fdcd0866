// Package metrics holds the prometheus collectors shared by the services.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "foodcart"

type Metrics struct {
	ordersPlaced     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	conflicts        prometheus.Counter
	checkoutOutcomes *prometheus.CounterVec
	watchers         *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ordersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders created, by payment status.",
		}, []string{"payment_status"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Successful order status transitions.",
		}, []string{"from", "to"}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transition_conflicts_total",
			Help:      "Status updates rejected because another writer got there first.",
		}),
		checkoutOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_outcomes_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		watchers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "order_watchers",
			Help:      "Open order subscriptions.",
		}, []string{"view"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dispatched_total",
			Help:      "Status notifications handed to a sink.",
		}, []string{"status"}),
	}
}

func (m *Metrics) OrderPlaced(paymentStatus string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(paymentStatus).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) TransitionConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.checkoutOutcomes.WithLabelValues(outcome).Inc()
}

// WatcherOpened increments the open subscription gauge and returns the
// matching decrement.
func (m *Metrics) WatcherOpened(view string) func() {
	if m == nil {
		return func() {}
	}
	g := m.watchers.WithLabelValues(view)
	g.Inc()
	return g.Dec
}

func (m *Metrics) NotificationDispatched(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}
