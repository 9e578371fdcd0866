package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderPlaced("paid")
	m.OrderPlaced("paid")
	m.OrderPlaced("unpaid")
	m.Transition("pending", "preparing")
	m.TransitionConflict()
	m.CheckoutOutcome("declined")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersPlaced.WithLabelValues("unpaid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "preparing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutOutcomes.WithLabelValues("declined")))
}

func TestMetrics_watcherGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.WatcherOpened("staff")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchers.WithLabelValues("staff")))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.watchers.WithLabelValues("staff")))
}

func TestMetrics_nilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderPlaced("paid")
		m.Transition("a", "b")
		m.TransitionConflict()
		m.CheckoutOutcome("ok")
		m.WatcherOpened("customer")()
		m.NotificationDispatched("ready")
	})
}
