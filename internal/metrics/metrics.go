package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus metrics. A nil *Metrics is valid and
// turns every increment into a no-op, so tests don't need a registry.
type Metrics struct {
	OwnerTransfers      prometheus.Counter
	DuesAssessed        prometheus.Counter
	PaymentsRecorded    prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		OwnerTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sntledger_owner_transfers_total",
			Help: "Total number of ownership transfers recorded",
		}),
		DuesAssessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sntledger_dues_assessed_total",
			Help: "Total number of yearly due records created",
		}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sntledger_payments_recorded_total",
			Help: "Total number of payment updates committed",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sntledger_notifications_sent_total",
			Help: "Total number of notifications handed to the transport",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sntledger_notifications_failed_total",
			Help: "Total number of notifications that failed to send",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sntledger_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sntledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) IncrementOwnerTransfers() {
	if m != nil {
		m.OwnerTransfers.Inc()
	}
}

func (m *Metrics) IncrementDuesAssessed() {
	if m != nil {
		m.DuesAssessed.Inc()
	}
}

func (m *Metrics) IncrementPaymentsRecorded() {
	if m != nil {
		m.PaymentsRecorded.Inc()
	}
}

func (m *Metrics) IncrementNotificationsSent() {
	if m != nil {
		m.NotificationsSent.Inc()
	}
}

func (m *Metrics) IncrementNotificationsFailed() {
	if m != nil {
		m.NotificationsFailed.Inc()
	}
}
