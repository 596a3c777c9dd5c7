// Package metrics provides the Prometheus collectors of each segmentlab subsystem.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PipelineMetrics tracks task execution and pipeline output.
type PipelineMetrics struct {
	TasksStarted    *prometheus.CounterVec
	TasksFinished   *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	TasksRunning    prometheus.Gauge
	SegmentsCreated prometheus.Counter
	Predictions     *prometheus.CounterVec
	ProgressCommits *prometheus.CounterVec
	LabelsResolved  prometheus.Counter
	ItemsSkipped    *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers the pipeline collectors.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		TasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentlab_tasks_started_total",
			Help: "Tasks picked up by a worker, by kind",
		}, []string{"kind"}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentlab_tasks_finished_total",
			Help: "Tasks finished, by kind and outcome",
		}, []string{"kind", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "segmentlab_task_duration_seconds",
			Help:    "Task execution time",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"kind"}),
		TasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "segmentlab_tasks_running",
			Help: "Tasks currently executing",
		}),
		SegmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segmentlab_segments_created_total",
			Help: "Segments persisted by audio processing",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentlab_predictions_total",
			Help: "Auto-label predictions, by model variant",
		}, []string{"variant"}),
		ProgressCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentlab_progress_commits_total",
			Help: "Job state commits, by job kind and status",
		}, []string{"kind", "status"}),
		LabelsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "segmentlab_labels_resolved_total",
			Help: "Class names reconciled against the label table",
		}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentlab_items_skipped_total",
			Help: "Items skipped because an artifact was missing, by stage",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{
		m.TasksStarted, m.TasksFinished, m.TaskDuration, m.TasksRunning,
		m.SegmentsCreated, m.Predictions, m.ProgressCommits, m.LabelsResolved, m.ItemsSkipped,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
		}
	}
	return m, nil
}

// TaskStarted records a task picked up by a worker.
func (m *PipelineMetrics) TaskStarted(kind string) {
	m.TasksStarted.WithLabelValues(kind).Inc()
	m.TasksRunning.Inc()
}

// TaskFinished records a finished task and its duration.
func (m *PipelineMetrics) TaskFinished(kind string, d time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.TasksRunning.Dec()
	m.TasksFinished.WithLabelValues(kind, outcome).Inc()
	m.TaskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddSegments counts persisted segments.
func (m *PipelineMetrics) AddSegments(n int) {
	m.SegmentsCreated.Add(float64(n))
}

// Prediction counts one prediction made by variant.
func (m *PipelineMetrics) Prediction(variant string) {
	m.Predictions.WithLabelValues(variant).Inc()
}

// Commit counts one state commit.
func (m *PipelineMetrics) Commit(kind, status string) {
	m.ProgressCommits.WithLabelValues(kind, status).Inc()
}

// Skipped counts an item skipped at stage.
func (m *PipelineMetrics) Skipped(stage string) {
	m.ItemsSkipped.WithLabelValues(stage).Inc()
}
