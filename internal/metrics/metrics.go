package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// TxTotal counts ledger transactions by name and outcome kind
	// ("ok" or an apierror kind).
	TxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cajapos_tx_total",
			Help: "Ledger transactions by operation and result",
		},
		[]string{"operacion", "resultado"},
	)

	JobsDLQTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cajapos_jobs_dlq_total",
			Help: "Background jobs moved to the dead letter queue",
		},
		[]string{"queue"},
	)
)

var once sync.Once

// Init registers the collectors on the default registry. Safe to call twice.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, TxTotal, JobsDLQTotal)
	})
}
