package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the service's Prometheus collectors. A nil
// collector is valid and records nothing.
type MetricsCollector struct {
	registry *prometheus.Registry

	ordersCreated    *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	orderCompletion  *prometheus.HistogramVec
	reservations     *prometheus.CounterVec
	ledgerEntries    *prometheus.CounterVec
	subscribers      *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
}

// NewMetricsCollector creates the collectors on a private registry
func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Orders accepted, by fulfillment method",
			},
			[]string{"fulfillment", "catering"},
		),
		orderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Committed order status changes",
			},
			[]string{"from", "to"},
		),
		orderCompletion: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "order_completion_time_seconds",
				Help:    "Time from order placement to completion",
				Buckets: prometheus.LinearBuckets(0, 300, 20), // 5-minute buckets
			},
			[]string{"fulfillment"},
		),
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Reservation attempts, by outcome",
			},
			[]string{"outcome"},
		),
		ledgerEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_entries_total",
				Help: "Inventory consumption entries, by outcome",
			},
			[]string{"outcome"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "live_view_subscribers",
				Help: "Connected live view subscribers, by role",
			},
			[]string{"role"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Outbound notifications, by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.orderCompletion,
		m.reservations,
		m.ledgerEntries,
		m.subscribers,
		m.notifications,
	)
	return m
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RecordOrderCreated counts an accepted order
func (m *MetricsCollector) RecordOrderCreated(fulfillment string, catering bool) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(fulfillment, boolLabel(catering)).Inc()
}

// RecordTransition counts a status change
func (m *MetricsCollector) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// RecordCompletion observes how long an order took to complete
func (m *MetricsCollector) RecordCompletion(fulfillment string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.orderCompletion.WithLabelValues(fulfillment).Observe(elapsed.Seconds())
}

// RecordReservation counts a reservation outcome
func (m *MetricsCollector) RecordReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// RecordLedgerEntry counts a ledger write outcome
func (m *MetricsCollector) RecordLedgerEntry(outcome string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(outcome).Inc()
}

// AddSubscribers moves the subscriber gauge for role by delta
func (m *MetricsCollector) AddSubscribers(role string, delta float64) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(role).Add(delta)
}

// RecordNotification counts an outbound notification outcome
func (m *MetricsCollector) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
