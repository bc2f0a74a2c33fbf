// Package metrics exposes the Prometheus collectors of the order service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// OrderMetrics is safe to use as a nil pointer; every method is a no-op then.
type OrderMetrics struct {
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	Transitions     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	TxDuration      *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
}

// New registers the collectors on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer, service string) *OrderMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &OrderMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "orders_created_total",
			Help:      "Orders committed by checkout.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled with stock and voucher compensation.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "order_failures_total",
			Help:      "Failed order operations by error code.",
		}, []string{"op", "code"}),
		TxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "tx_duration_ms",
			Help:      "Order transaction latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"op"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
	}
	reg.MustRegister(m.OrdersCreated, m.OrdersCancelled, m.Transitions, m.Failures, m.TxDuration, m.Requests, m.LatencyMS)
	return m
}

func (m *OrderMetrics) ObserveCreated() {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
}

func (m *OrderMetrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.OrdersCancelled.Inc()
}

func (m *OrderMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *OrderMetrics) ObserveFailure(op, code string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op, code).Inc()
}

func (m *OrderMetrics) ObserveTx(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.TxDuration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000)
}

func (m *OrderMetrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
