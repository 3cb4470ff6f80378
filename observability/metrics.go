// Package observability provides Prometheus metric instruments and
// OpenTelemetry tracing for the gateway.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's metric instruments.
type Metrics struct {
	AdmitsTotal          *prometheus.CounterVec
	EventsDispatched     prometheus.Counter
	DeliveriesTotal      *prometheus.CounterVec
	DeliveryLatency      prometheus.Histogram
	PendingDeliveries    prometheus.Gauge
	CounterStoreFailures prometheus.Counter
}

// NewMetrics creates gateway metric instruments and registers them with the
// supplied registerer. Pass prometheus.DefaultRegisterer for standalone use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_admits_total",
			Help: "Rate limiter decisions by outcome.",
		}, []string{"decision"}),
		EventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_events_dispatched_total",
			Help: "Events accepted for webhook delivery.",
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_deliveries_total",
			Help: "Webhook delivery attempts by result.",
		}, []string{"status"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_delivery_latency_seconds",
			Help:    "Webhook delivery attempt latency.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingDeliveries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_pending_deliveries",
			Help: "Deliveries awaiting attempt.",
		}),
		CounterStoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_counter_store_failures_total",
			Help: "Counting store errors absorbed by the fail policy.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AdmitsTotal,
			m.EventsDispatched,
			m.DeliveriesTotal,
			m.DeliveryLatency,
			m.PendingDeliveries,
			m.CounterStoreFailures,
		)
	}
	return m
}

// RecordAdmit records a rate limiter decision.
func (m *Metrics) RecordAdmit(decision string) {
	m.AdmitsTotal.WithLabelValues(decision).Inc()
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabelValues(status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
