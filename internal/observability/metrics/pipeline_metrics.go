// Package metrics exposes prometheus instruments for the pipeline.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels applied to every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// PipelineMetrics instruments the scheduled metrics run.
type PipelineMetrics struct {
	runDuration      *prometheus.HistogramVec
	stepProcessed    *prometheus.CounterVec
	businessFailures *prometheus.CounterVec
	alertsCreated    *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
	totalMRR         prometheus.Gauge
	payingCustomers  prometheus.Gauge
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics set.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the metrics set, registering it on first use.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest clears the singleton between test registries.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "pulse"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "pulse_pipeline_run_duration_seconds",
			Help:        "Wall time of one full pipeline run.",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failure
	)

	stepProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "pulse_pipeline_step_processed_total",
			Help:        "Per-step processed counts across pipeline runs.",
			ConstLabels: constLabels,
		},
		[]string{"step", "result"}, // snapshot|ltv|churn|forecast|expansion|insights|alerts, success|failure
	)

	businessFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "pulse_pipeline_business_failures_total",
			Help:        "Per-business step failures isolated during fan-out.",
			ConstLabels: constLabels,
		},
		[]string{"step"},
	)

	alertsCreated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "pulse_alerts_created_total",
			Help:        "Alerts inserted by the insight engine.",
			ConstLabels: constLabels,
		},
		[]string{"severity"},
	)

	alertsSuppressed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "pulse_alerts_suppressed_total",
			Help:        "Alerts dropped because an unresolved duplicate exists.",
			ConstLabels: constLabels,
		},
	)

	totalMRR := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "pulse_mrr_total_cents",
			Help:        "Total MRR in minor units from the latest snapshot.",
			ConstLabels: constLabels,
		},
	)

	payingCustomers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "pulse_paying_customers",
			Help:        "Paying customers in the latest snapshot.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		runDuration,
		stepProcessed,
		businessFailures,
		alertsCreated,
		alertsSuppressed,
		totalMRR,
		payingCustomers,
	)

	return &PipelineMetrics{
		runDuration:      runDuration,
		stepProcessed:    stepProcessed,
		businessFailures: businessFailures,
		alertsCreated:    alertsCreated,
		alertsSuppressed: alertsSuppressed,
		totalMRR:         totalMRR,
		payingCustomers:  payingCustomers,
	}
}

// ObserveRunDuration records one completed run.
func (m *PipelineMetrics) ObserveRunDuration(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.runDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncStep counts one step outcome.
func (m *PipelineMetrics) IncStep(step, result string) {
	if m == nil {
		return
	}
	m.stepProcessed.WithLabelValues(step, result).Inc()
}

// IncBusinessFailure counts one isolated per-business failure.
func (m *PipelineMetrics) IncBusinessFailure(step string) {
	if m == nil {
		return
	}
	m.businessFailures.WithLabelValues(step).Inc()
}

// IncAlertCreated counts one inserted alert by severity.
func (m *PipelineMetrics) IncAlertCreated(severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(severity).Inc()
}

// IncAlertSuppressed counts one deduplicated alert.
func (m *PipelineMetrics) IncAlertSuppressed() {
	if m == nil {
		return
	}
	m.alertsSuppressed.Inc()
}

// SetSnapshotGauges publishes headline figures from the latest snapshot.
func (m *PipelineMetrics) SetSnapshotGauges(totalMRRCents int64, paying int) {
	if m == nil {
		return
	}
	m.totalMRR.Set(float64(totalMRRCents))
	m.payingCustomers.Set(float64(paying))
}
