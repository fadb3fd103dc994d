package metrics

import (
	"wifi-voucher-portal/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		vouchersGeneratedTotal,
		voucherActivationsTotal,
		vouchersExpiredTotal,
		vouchersByStatus,
	)
}

var (
	vouchersGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchers_generated_total",
			Help: "Vouchers minted, by source (admin batch or payment).",
		},
		[]string{"source"},
	)

	voucherActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_activations_total",
			Help: "Voucher activation attempts by result.",
		},
		[]string{"result"},
	)

	vouchersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vouchers_expired_total",
			Help: "Total number of vouchers moved to expired by the sweep.",
		},
	)

	vouchersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vouchers_by_status",
			Help: "Current number of vouchers by effective status.",
		},
		[]string{"status"},
	)
)

func AddVouchersGenerated(source string, n int) {
	vouchersGeneratedTotal.WithLabelValues(norm(source)).Add(float64(n))
}

func IncVoucherActivation(result string) {
	voucherActivationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncVouchersExpired(count int) {
	vouchersExpiredTotal.Add(float64(count))
}

func SetVouchersByStatus(counts map[model.VoucherStatus]int) {
	for _, status := range model.AllVoucherStatuses {
		if count, ok := counts[status]; ok {
			vouchersByStatus.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
