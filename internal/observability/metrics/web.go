package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "web_requests_total",
			Help: "Total number of frontend page requests",
		},
		[]string{"method", "path"},
	)

	WebRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "web_requests_in_flight",
			Help: "Number of frontend requests currently being processed",
		},
	)

	WebRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "web_request_duration_seconds",
			Help:    "Duration of frontend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RouteGuardChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_guard_checks_total",
			Help: "Total number of route guard profile checks by outcome",
		},
		[]string{"outcome"},
	)

	APIClientRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_request_duration_seconds",
			Help:    "Duration of frontend calls to the API in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
