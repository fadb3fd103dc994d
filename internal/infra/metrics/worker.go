package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerTasksTotal) }

var workerTasksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_tasks_total",
		Help: "Background tasks handled by the worker pool, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'rejected'
)

func IncWorkerTask(status string) {
	workerTasksTotal.WithLabelValues(norm(status)).Inc()
}
