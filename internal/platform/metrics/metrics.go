// Package metrics holds all Prometheus metrics for the broker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the application-level collectors. A nil *Metrics is
// safe everywhere; recording methods no-op so unit tests can pass nil.
type Metrics struct {
	ConsentsGranted     prometheus.Counter
	ConsentsRevoked     prometheus.Counter
	AuthorizeDecisions  *prometheus.CounterVec
	DataReads           *prometheus.CounterVec
	ValidationFailures  prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podbroker_consents_granted_total",
			Help: "Total number of consent grants created",
		}),
		ConsentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podbroker_consents_revoked_total",
			Help: "Total number of consent grants revoked",
		}),
		AuthorizeDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "podbroker_authorize_decisions_total",
			Help: "Authorization decisions by outcome",
		}, []string{"decision"}),
		DataReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "podbroker_data_reads_total",
			Help: "Data reads by access kind (self, third_party)",
		}, []string{"kind"}),
		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "podbroker_validation_failures_total",
			Help: "Rejected payloads and malformed requests",
		}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podbroker_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) RecordConsentGranted() {
	if m == nil {
		return
	}
	m.ConsentsGranted.Inc()
}

func (m *Metrics) RecordConsentRevoked() {
	if m == nil {
		return
	}
	m.ConsentsRevoked.Inc()
}

func (m *Metrics) RecordAuthorizeDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthorizeDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordDataRead(kind string) {
	if m == nil {
		return
	}
	m.DataReads.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordValidationFailure() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}

func (m *Metrics) ObserveHTTPRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}
