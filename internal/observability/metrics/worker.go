package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the classification pipeline. It implements
// ports.PipelineObserver, so the worker usecases report through it without
// an import of this package.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processedTotal  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	confidence      *prometheus.HistogramVec
	queueLag        prometheus.Histogram
	reapedTotal     prometheus.Counter
	processInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "documents_processed_total",
			Help:      "Total processed documents by industry, document type and outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"industry", "document_type", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"stage"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "classification_confidence",
			Help:      "Distribution of classification confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"industry"},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	reapedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "jobs_reaped_total",
			Help:      "Total running jobs failed by the stuck-job reaper.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "doctriage",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(processedTotal, stageDuration, confidence, queueLag, reapedTotal, processInFlight)

	return &WorkerMetrics{
		registry:        registry,
		processedTotal:  processedTotal,
		stageDuration:   stageDuration,
		confidence:      confidence,
		queueLag:        queueLag,
		reapedTotal:     reapedTotal,
		processInFlight: processInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob() {
	m.processInFlight.Dec()
}

func (m *WorkerMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *WorkerMetrics) ObserveOutcome(industry, documentType, outcome string, total time.Duration) {
	if industry == "" {
		industry = "unspecified"
	}
	if documentType == "" {
		documentType = "none"
	}
	m.processedTotal.WithLabelValues(industry, documentType, outcome).Inc()
	m.stageDuration.WithLabelValues("total").Observe(total.Seconds())
}

func (m *WorkerMetrics) ObserveConfidence(industry string, confidence float64) {
	if industry == "" {
		industry = "unspecified"
	}
	m.confidence.WithLabelValues(industry).Observe(confidence)
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveReaped(count int) {
	if count <= 0 {
		return
	}
	m.reapedTotal.Add(float64(count))
}
