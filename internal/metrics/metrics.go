// Package metrics defines the Prometheus collectors for the HTTP API, the protocol and the notification pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicetrust"

// Metrics holds all collectors. All methods are safe on a nil receiver.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	protocolSteps       *prometheus.CounterVec
	ticketsCreated      *prometheus.CounterVec
	ticketsResolved     *prometheus.CounterVec
	notificationsQueued *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	deliveries          *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route"}),
		protocolSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "protocol", Name: "steps_total",
			Help: "Next steps returned by the confirmation protocol",
		}, []string{"operation", "step"}),
		ticketsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ticket", Name: "created_total",
			Help: "Validation tickets created",
		}, []string{"method"}),
		ticketsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ticket", Name: "resolved_total",
			Help: "Validation ticket terminal transitions and rejected approval attempts",
		}, []string{"outcome"}),
		notificationsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "queued_total",
			Help: "Notifications handed to the delivery pipeline",
		}, []string{"channel"}),
		notificationsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "enqueue_failures_total",
			Help: "Notifications that could not be handed to the delivery pipeline",
		}, []string{"channel"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "deliveries_total",
			Help: "Delivery attempts by the notification worker",
		}, []string{"channel", "result"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"route"}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ProtocolStep(operation, step string) {
	if m == nil {
		return
	}
	m.protocolSteps.WithLabelValues(operation, step).Inc()
}

func (m *Metrics) TicketCreated(method string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) TicketResolved(outcome string) {
	if m == nil {
		return
	}
	m.ticketsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotificationQueued(channel string) {
	if m == nil {
		return
	}
	m.notificationsQueued.WithLabelValues(channel).Inc()
}

func (m *Metrics) NotificationFailed(channel string) {
	if m == nil {
		return
	}
	m.notificationsFailed.WithLabelValues(channel).Inc()
}

func (m *Metrics) Delivery(channel, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
