package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request latency per route pattern.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP histogram on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(duration)
	return &HTTPMetrics{duration: duration}
}

// Observe records one request.
func (h *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if h == nil || h.duration == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	h.duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
