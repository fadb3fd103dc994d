package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayRequestsTotal, gatewayLatency) }

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Captive-portal gateway calls by operation and result.",
		},
		[]string{"op", "result"}, // result: ok|error|timeout
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "Captive-portal gateway call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)

func ObserveGatewayCall(op, result string, d time.Duration) {
	gatewayRequestsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	gatewayLatency.WithLabelValues(norm(op)).Observe(d.Seconds())
}
