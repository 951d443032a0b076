package core

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	pipelineTotal   *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	rowErrorsTotal  *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	activeImports   prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		pipelineTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewimport",
			Name:      "pipeline_total",
			Help:      "Total number of import pipelines by operation and terminal phase.",
		}, []string{"entity", "operation", "phase"}),
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewimport",
			Name:      "rows_total",
			Help:      "Total number of rows processed by outcome.",
		}, []string{"entity", "outcome"}),
		rowErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crewimport",
			Name:      "row_errors_total",
			Help:      "Total number of row-level errors by code.",
		}, []string{"entity", "code"}),
		pipelineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crewimport",
			Name:      "pipeline_duration_seconds",
			Help:      "Latency distribution for import pipelines.",
			Buckets: []float64{
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10, 30,
			},
		}, []string{"entity", "operation"}),
		activeImports: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "crewimport",
			Name:      "active_pipelines",
			Help:      "Current number of pipelines holding a limiter slot.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func (m *metrics) observePipeline(entity, operation string, phase Phase, started time.Time) {
	m.pipelineTotal.WithLabelValues(entity, operation, string(phase)).Inc()
	m.pipelineLatency.WithLabelValues(entity, operation).Observe(time.Since(started).Seconds())
}

func (m *metrics) observeValidation(entity string, res *ValidationResult) {
	m.rowsTotal.WithLabelValues(entity, "valid").Add(float64(res.ValidCount))
	m.rowsTotal.WithLabelValues(entity, "invalid").Add(float64(res.TotalRows - res.ValidCount))
	for _, fe := range res.Errors {
		m.rowErrorsTotal.WithLabelValues(entity, string(fe.Code)).Inc()
	}
}

func (m *metrics) observeImport(entity string, res *ImportResult) {
	m.rowsTotal.WithLabelValues(entity, "imported").Add(float64(res.ImportedCount))
	m.rowsTotal.WithLabelValues(entity, "import_failed").Add(float64(len(res.Errors)))
	for _, fe := range res.Errors {
		m.rowErrorsTotal.WithLabelValues(entity, string(fe.Code)).Inc()
	}
}
