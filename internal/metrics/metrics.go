// Package metrics defines the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "checkout"

type Metrics struct {
	CheckoutInitiated  *prometheus.CounterVec
	CheckoutCompleted  *prometheus.CounterVec
	IdempotencyReplays prometheus.Counter
	MalformedPrices    prometheus.Counter
	GatewayRequests    *prometheus.CounterVec
	GatewayDuration    *prometheus.HistogramVec
	EcoImpactFailures  prometheus.Counter
	EventPublishErrors prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CheckoutInitiated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_initiated_total",
			Help: "Checkout initiations by outcome.",
		}, []string{"outcome"}),
		CheckoutCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_completed_total",
			Help: "Checkout completions by outcome.",
		}, []string{"outcome"}),
		IdempotencyReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "idempotency_replays_total",
			Help: "Responses served from a stored idempotency entry.",
		}),
		MalformedPrices: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_prices_total",
			Help:      "Cart item prices that could not be parsed and were counted as zero.",
		}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Razorpay API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		GatewayDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Razorpay API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		EcoImpactFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "eco_impact_update_failures_total",
			Help: "Eco-impact ledger updates that failed after a completed checkout.",
		}),
		EventPublishErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Checkout events that could not be written to Kafka.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Initiated(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutInitiated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Completed(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutCompleted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Replay() {
	if m == nil {
		return
	}
	m.IdempotencyReplays.Inc()
}

func (m *Metrics) MalformedPrice() {
	if m == nil {
		return
	}
	m.MalformedPrices.Inc()
}

// Gateway records one outbound call. outcome is "ok", "error" or "timeout".
func (m *Metrics) Gateway(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.GatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) EcoImpactFailure() {
	if m == nil {
		return
	}
	m.EcoImpactFailures.Inc()
}

func (m *Metrics) EventPublishError() {
	if m == nil {
		return
	}
	m.EventPublishErrors.Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
