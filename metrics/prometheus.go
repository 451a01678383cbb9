package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "stocketl"
	// pushJob is the pushgateway job name of pipeline runs.
	pushJob = "stocketl"
)

// Recorder records pipeline run metrics using Prometheus.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	rows          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates a new Prometheus metrics recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of rows handled by kind",
			},
			[]string{"kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of failed runs by error kind",
			},
			[]string{"kind"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last run",
			},
		),
	}

	r.registry.MustRegister(r.stageDuration, r.rows, r.failures, r.lastSuccess, r.lastRun)

	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records the duration of a pipeline stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddRows records rows handled by kind.
func (r *Recorder) AddRows(kind string, n int) {
	r.rows.WithLabelValues(kind).Add(float64(n))
}

// RecordFailure records a failed run by error kind.
func (r *Recorder) RecordFailure(kind string) {
	r.failures.WithLabelValues(kind).Inc()
	r.lastRun.SetToCurrentTime()
}

// RecordSuccess records a successful run.
func (r *Recorder) RecordSuccess() {
	r.lastSuccess.SetToCurrentTime()
	r.lastRun.SetToCurrentTime()
}

// Push pushes the recorded metrics to a Prometheus pushgateway, grouped by ticker.
func (r *Recorder) Push(ctx context.Context, url string, ticker string) error {
	err := push.New(url, pushJob).
		Gatherer(r.registry).
		Grouping("ticker", ticker).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}

	return nil
}
