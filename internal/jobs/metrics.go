package jobmetrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for worker tasks.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the task metrics against registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single task run.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts a tracker for the given task type.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the run and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, asynq.SkipRetry):
		status = "dropped"
	default:
		status = "failure"
	}
	t.metrics.runs.WithLabelValues(t.task, status).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// Instrument wraps an asynq handler so every run is tracked under its task type.
func (m *Metrics) Instrument(next asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		tracker := m.Track(task.Type())
		return tracker.End(next(ctx, task))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_jobs_total",
		Help: "Worker task executions partitioned by task type and status.",
	}, []string{"task", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_job_duration_seconds",
		Help:    "Duration in seconds of worker task executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	registerer.MustRegister(runs, duration)
	return &Metrics{runs: runs, duration: duration}
}
