package httpmetrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trackfit/backend/internal/observability/metrics"
)

type Collector struct {
	requestsTotal    *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
	requestDuration  *prometheus.HistogramVec
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func New(prefix string) *Collector {
	switch prefix {
	case "api":
		return &Collector{
			requestsTotal:    metrics.APIRequestsTotal,
			requestsInFlight: metrics.APIRequestsInFlight,
			requestDuration:  metrics.APIRequestDurationSeconds,
		}
	case "web":
		return &Collector{
			requestsTotal:    metrics.WebRequestsTotal,
			requestsInFlight: metrics.WebRequestsInFlight,
			requestDuration:  metrics.WebRequestDurationSeconds,
		}
	default:
		return &Collector{}
	}
}

func (c *Collector) Wrap(next http.Handler) http.Handler {
	if c.requestsTotal == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := r.Method
		path := NormalizePath(r.URL.Path)

		c.requestsTotal.WithLabelValues(method, path).Inc()
		c.requestsInFlight.Inc()
		defer c.requestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusClass := fmt.Sprintf("%dxx", rec.status/100)
		c.requestDuration.WithLabelValues(method, path, statusClass).Observe(time.Since(start).Seconds())
	})
}
