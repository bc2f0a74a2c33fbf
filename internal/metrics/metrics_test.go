package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetricsCount(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.ObserveCreated()
	m.ObserveCreated()
	m.ObserveCancelled()
	m.ObserveTransition("PENDING", "CONFIRMED")
	m.ObserveFailure("create", "empty_cart")
	m.ObserveTx("create", 3*time.Millisecond)
	m.ObserveRequest("/orders", http.StatusCreated, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("PENDING", "CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failures.WithLabelValues("create", "empty_cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders", "201")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.ObserveCreated()
		m.ObserveCancelled()
		m.ObserveTransition("PENDING", "CANCELLED")
		m.ObserveFailure("cancel", "not_found")
		m.ObserveTx("cancel", time.Second)
		m.ObserveRequest("/health", http.StatusOK, time.Second)
	})
}
