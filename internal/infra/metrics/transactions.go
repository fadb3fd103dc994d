package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		transactionsTotal,
		transactionsRevenueTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_total",
			Help: "Mobile-money transactions by status, plus late_success and unfulfillable for paid callbacks that issued no voucher.",
		},
		[]string{"status"},
	)

	transactionsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_revenue_total",
			Help: "The total monetary value of completed transactions, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncTransaction(status string) {
	transactionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddTransactionRevenue(currency string, amount decimal.Decimal) {
	transactionsRevenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}
