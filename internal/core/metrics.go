// AngelaMos | 2026
// metrics.go

package core

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "socialsync"

var (
	MetricsRegistry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Inbound webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Dispatched webhook events by kind and result.",
		},
		[]string{"kind", "result"},
	)

	webhookEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "webhook",
			Name:      "event_duration_seconds",
			Help:      "Duration of webhook event handlers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"kind"},
	)

	linkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "linking",
			Name:      "outcomes_total",
			Help:      "Link code operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	entitlementSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "entitlement",
			Name:      "syncs_total",
			Help:      "Entitlement syncs by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit scope, by backing store.",
		},
		[]string{"scope", "store"},
	)
)

func init() {
	MetricsRegistry.MustRegister(
		httpRequests,
		httpDuration,
		webhookDeliveries,
		webhookEvents,
		webhookEventDuration,
		linkOutcomes,
		entitlementSyncs,
		rateLimited,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(MetricsRegistry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordWebhookDelivery(outcome string) {
	webhookDeliveries.WithLabelValues(outcome).Inc()
}

func RecordWebhookEvent(kind string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	webhookEvents.WithLabelValues(kind, result).Inc()
	webhookEventDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordLinkOutcome(operation, outcome string) {
	linkOutcomes.WithLabelValues(operation, outcome).Inc()
}

func RecordEntitlementSync(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "inconclusive"
	}
	entitlementSyncs.WithLabelValues(trigger, result).Inc()
}

func RecordRateLimited(scope, store string) {
	rateLimited.WithLabelValues(scope, store).Inc()
}
