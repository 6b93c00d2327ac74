package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the audit persistence worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	rowsWritten   *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	rowsWritten := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askema",
			Subsystem: "audit",
			Name:      "rows_written_total",
			Help:      "Total audit rows persisted.",
		},
		[]string{"service"},
	)
	writeFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askema",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Total failed audit row writes.",
		},
		[]string{"service"},
	)

	registry.MustRegister(rowsWritten, writeFailures)

	return &WorkerMetrics{
		registry:      registry,
		rowsWritten:   rowsWritten,
		writeFailures: writeFailures,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) RecordAuditWrite(service string, err error) {
	if err != nil {
		m.writeFailures.WithLabelValues(service).Inc()
		return
	}
	m.rowsWritten.WithLabelValues(service).Inc()
}
