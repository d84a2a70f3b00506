// internal/common/metrics/metrics.go
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	MatchingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Matching runs by scorer mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	MatchingNeeds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_needs_total",
			Help: "Needs processed by matching runs, by result source and outcome",
		},
		[]string{"mode", "source", "outcome"},
	)

	MatchingNeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_need_duration_seconds",
			Help:    "Time spent resolving the ranking of one need",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 20},
		},
		[]string{"mode", "source"},
	)

	MatchingRankedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_ranked_candidates",
			Help:    "Eligible candidates per computed ranking",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

// JobObserver receives every finished job in addition to the prometheus series.
type JobObserver interface {
	RecordJobProcessed(ctx context.Context, taskType, status string, d time.Duration)
}

type observerBox struct{ JobObserver }

var jobObserver atomic.Value

// SetJobObserver installs o for all subsequent jobs. Nil removes it.
func SetJobObserver(o JobObserver) {
	jobObserver.Store(observerBox{o})
}

// JobTimer tracks one job of a task type across the worker metrics.
type JobTimer struct {
	taskType string
	start    time.Time
	timer    *prometheus.Timer
}

func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{
		taskType: taskType,
		start:    time.Now(),
		timer:    prometheus.NewTimer(WorkerJobDuration.WithLabelValues(taskType)),
	}
}

// Done records completion, or failure when errorCode is not empty.
func (j *JobTimer) Done(errorCode string) {
	j.timer.ObserveDuration()
	WorkerJobsActive.WithLabelValues(j.taskType).Dec()

	status := "completed"
	if errorCode != "" {
		status = errorCode
		WorkerJobsFailed.WithLabelValues(j.taskType, errorCode).Inc()
	} else {
		WorkerJobsCompleted.WithLabelValues(j.taskType).Inc()
	}

	if box, ok := jobObserver.Load().(observerBox); ok && box.JobObserver != nil {
		box.RecordJobProcessed(context.Background(), j.taskType, status, time.Since(j.start))
	}
}
