// Package metrics exposes Prometheus counters and histograms for the
// worker runtime and ingress, grounded on the teacher's use of
// prometheus/client_golang. There is no teacher file to adapt directly —
// the examples instrument HTTP handlers, and this package follows the same
// registration idiom (MustRegister at package init) applied to the
// worker-task boundary instead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_tasks_processed_total",
		Help: "Worker tasks completed, labelled by outcome.",
	}, []string{"outcome"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_task_duration_seconds",
		Help:    "Time spent executing one worker task end to end.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	WorkflowExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_workflow_executions_total",
		Help: "execute_workflow invocations, labelled by outcome and workflow id.",
	}, []string{"workflow_id", "outcome"})

	ProduceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_produce_failures_total",
		Help: "Produce-to-broker failures, which leave the originating offset uncommitted.",
	})

	InFlightTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "processor_inflight_tasks",
		Help: "Worker tasks currently holding a concurrency permit.",
	})
)

// ObserveTask records one worker task's outcome and wall-clock duration.
func ObserveTask(outcome string, start time.Time) {
	TasksProcessed.WithLabelValues(outcome).Inc()
	TaskDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// ObserveWorkflow records one execute_workflow invocation's outcome.
func ObserveWorkflow(workflowID, outcome string) {
	WorkflowExecutions.WithLabelValues(workflowID, outcome).Inc()
}
