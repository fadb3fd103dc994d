package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminLoginsTotal, rateLimitedTotal) }

var (
	adminLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_logins_total",
			Help: "Back-office login attempts by result.",
		},
		[]string{"result"}, // 'ok', 'bad_credentials', 'inactive'
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter, by bucket.",
		},
		[]string{"bucket"},
	)
)

func IncAdminLogin(result string) {
	adminLoginsTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimited(bucket string) {
	rateLimitedTotal.WithLabelValues(norm(bucket)).Inc()
}
