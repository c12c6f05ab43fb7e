// Package metrics exposes prometheus instruments for the session
// reconciler and the request pipeline.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped on every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// ReconcilerMetrics captures reconciliation job health signals.
type ReconcilerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	stepChanges *prometheus.CounterVec
	lockSkipped prometheus.Counter
	runLoopLag  prometheus.Observer
}

var (
	reconcilerMetricsOnce sync.Once
	reconcilerMetrics     *ReconcilerMetrics
)

// Reconciler returns the singleton reconciler metrics registry.
func Reconciler() *ReconcilerMetrics {
	return ReconcilerWithConfig(Config{})
}

// ReconcilerWithConfig returns the singleton reconciler metrics
// registry using config labels.
func ReconcilerWithConfig(cfg Config) *ReconcilerMetrics {
	reconcilerMetricsOnce.Do(func() {
		reconcilerMetrics = newReconcilerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcilerMetrics
}

// ResetReconcilerMetricsForTest resets the singleton for tests.
func ResetReconcilerMetricsForTest() {
	reconcilerMetricsOnce = sync.Once{}
	reconcilerMetrics = nil
}

func newReconcilerMetrics(registerer prometheus.Registerer, cfg Config) *ReconcilerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "waitline"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "waitline_reconciler_job_runs_total",
		Help:        "Reconciler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "waitline_reconciler_job_duration_seconds",
		Help:        "Reconciler job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "waitline_reconciler_job_timeouts_total",
		Help:        "Reconciler jobs cut off by their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "waitline_reconciler_job_errors_total",
		Help:        "Reconciler job errors by job name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	stepChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "waitline_reconciler_step_changes_total",
		Help:        "Rows touched per reconciliation step.",
		ConstLabels: constLabels,
	}, []string{"step"})
	lockSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "waitline_reconciler_lock_skipped_total",
		Help:        "Runs skipped because another node held the leader lock.",
		ConstLabels: constLabels,
	})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "waitline_reconciler_runloop_lag_seconds",
		Help:        "Run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		stepChanges,
		lockSkipped,
		runLoopLag,
	)

	return &ReconcilerMetrics{
		jobRuns:     jobRuns,
		jobDuration: jobDuration,
		jobTimeouts: jobTimeouts,
		jobErrors:   jobErrors,
		stepChanges: stepChanges,
		lockSkipped: lockSkipped,
		runLoopLag:  runLoopLag,
	}
}

func (m *ReconcilerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *ReconcilerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *ReconcilerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *ReconcilerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *ReconcilerMetrics) AddStepChanges(step string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.stepChanges.WithLabelValues(step).Add(float64(count))
}

func (m *ReconcilerMetrics) IncLockSkipped() {
	if m == nil {
		return
	}
	m.lockSkipped.Inc()
}

func (m *ReconcilerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}
