package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsCollector on top of a Prometheus
// registry.
type PrometheusMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationResults  *prometheus.CounterVec
	retries           *prometheus.CounterVec
	transactionVolume *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewPrometheusMetrics registers the ledger collectors on the given registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agropay",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "ledger",
			Name:      "operation_results_total",
			Help:      "Ledger operation outcomes by result tag.",
		}, []string{"operation", "result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "ledger",
			Name:      "retries_total",
			Help:      "Version-conflict and serialization retries.",
		}, []string{"operation"}),
		transactionVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "ledger",
			Name:      "transaction_volume",
			Help:      "Committed transaction volume by type.",
		}, []string{"type"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "ledger",
			Name:      "errors_total",
			Help:      "Ledger errors by operation and error tag.",
		}, []string{"operation", "error"}),
	}
	reg.MustRegister(
		m.operationDuration,
		m.operationResults,
		m.retries,
		m.transactionVolume,
		m.errorsTotal,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordOperationResult(operation, result string) {
	m.operationResults.WithLabelValues(operation, result).Inc()
}

func (m *PrometheusMetrics) RecordRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordTransaction(txType string, amount float64) {
	m.transactionVolume.WithLabelValues(txType).Add(amount)
}

func (m *PrometheusMetrics) RecordError(operation, errType string) {
	m.errorsTotal.WithLabelValues(operation, errType).Inc()
}
