// Package metrics provides Prometheus metrics for the wait timer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Close outcomes
const (
	OutcomeStopped   = "stopped"
	OutcomeDiscarded = "discarded"
)

// Restore results
const (
	RestoreResumed = "resumed"
	RestoreAnomaly = "anomaly"
)

var (
	WaitsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghosted_waits_started_total",
			Help: "Total number of waits started",
		},
	)
	WaitsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghosted_waits_closed_total",
			Help: "Total number of waits closed, by how they ended",
		},
		[]string{"outcome"},
	)
	WaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ghosted_wait_duration_seconds",
			Help:    "How long each closed wait lasted",
			Buckets: []float64{10, 60, 300, 600, 1800, 3600, 7200, 14400, 43200, 86400, 259200},
		},
		[]string{"outcome"},
	)
	Restores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghosted_restores_total",
			Help: "Total number of restore attempts after an abnormal exit",
		},
		[]string{"result"},
	)
	SnapshotWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghosted_snapshot_write_failures_total",
			Help: "Total number of best-effort snapshot writes that failed",
		},
	)
	TimerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ghosted_timer_running",
			Help: "1 while a wait is being timed",
		},
	)
	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghosted_analyses_total",
			Help: "Total number of chat analyses, by classifier and result",
		},
		[]string{"classifier", "result"},
	)
)

// RecordWaitClosed counts a closed wait and observes its duration
func RecordWaitClosed(outcome string, duration time.Duration) {
	WaitsClosed.WithLabelValues(outcome).Inc()
	WaitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetRunning updates the running gauge
func SetRunning(running bool) {
	if running {
		TimerRunning.Set(1)
		return
	}
	TimerRunning.Set(0)
}
