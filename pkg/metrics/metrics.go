// Package metrics exposes seaflow's Prometheus metrics. Everything is
// registered with the default registry through promauto at package init.
//
//	metrics.SourcesBridged.WithLabelValues("Kafka", "coordinated").Inc()
//
//	timer := metrics.NewTimer()
//	plan()
//	metrics.PlanningLatency.WithLabelValues("source").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourcesBridged counts source instances attached to a job graph
	SourcesBridged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_sources_bridged_total",
			Help: "Source plugin instances added to a job graph",
		},
		[]string{"plugin", "strategy"},
	)

	// OrchestrationFailures counts planning passes that failed
	OrchestrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_orchestration_failures_total",
			Help: "Failed plugin planning passes by stage and error type",
		},
		[]string{"stage", "error_type"},
	)

	// DependenciesRegistered is the size of the last dependency set handed to the engine
	DependenciesRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seaflow_dependencies_registered",
			Help: "Plugin dependency locations registered with the engine",
		},
	)

	// PlanningLatency measures a processor pass
	PlanningLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seaflow_planning_latency_seconds",
			Help:    "Duration of a plugin planning pass",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)

	// RowsEmitted counts rows produced by source readers
	RowsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_rows_emitted_total",
			Help: "Rows emitted by source readers",
		},
		[]string{"plugin"},
	)

	// RowsWritten counts rows accepted by sink writers
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_rows_written_total",
			Help: "Rows written by sink writers",
		},
		[]string{"plugin"},
	)

	// RowsFiltered counts rows dropped by transforms
	RowsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_rows_filtered_total",
			Help: "Rows dropped by transforms",
		},
		[]string{"plugin"},
	)

	// ActiveTasks is the number of running engine tasks
	ActiveTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seaflow_active_tasks",
			Help: "Running engine tasks by node kind",
		},
		[]string{"kind"},
	)

	// SplitsAssigned counts splits handed to readers
	SplitsAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seaflow_splits_assigned_total",
			Help: "Splits assigned to source readers",
		},
		[]string{"plugin", "strategy"},
	)
)

// Timer measures elapsed wall time
type Timer struct {
	start time.Time
}

// NewTimer creates a timer started now
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer was created. It can be
// called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
