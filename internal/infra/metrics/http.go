package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpLatency) }

var httpLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_requests_latency_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
