// ABOUTME: Prometheus metrics for webhook traffic and management activity
// ABOUTME: Collectors are package-level and registered once at init

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hookgate",
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by final audit outcome.",
		},
		[]string{"outcome"},
	)

	webhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hookgate",
			Name:      "webhook_request_duration_seconds",
			Help:      "End-to-end webhook request latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	managementEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hookgate",
			Name:      "management_events_total",
			Help:      "Management API events by audit outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(webhookRequests, webhookDuration, managementEvents)
}
