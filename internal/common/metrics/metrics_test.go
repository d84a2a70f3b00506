package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingObserver) RecordJobProcessed(_ context.Context, taskType, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, taskType+":"+status)
}

func TestJobTimer_Done(t *testing.T) {
	obs := &recordingObserver{}
	SetJobObserver(obs)
	t.Cleanup(func() { SetJobObserver(nil) })

	const taskType = "metrics-test-task"
	completedBefore := testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues(taskType))
	failedBefore := testutil.ToFloat64(WorkerJobsFailed.WithLabelValues(taskType, "NOT_FOUND"))

	timer := StartJob(taskType)
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkerJobsActive.WithLabelValues(taskType)))
	timer.Done("")

	StartJob(taskType).Done("NOT_FOUND")

	assert.Equal(t, 0.0, testutil.ToFloat64(WorkerJobsActive.WithLabelValues(taskType)))
	assert.Equal(t, completedBefore+1, testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues(taskType)))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(WorkerJobsFailed.WithLabelValues(taskType, "NOT_FOUND")))

	require.Len(t, obs.statuses, 2)
	assert.Equal(t, []string{taskType + ":completed", taskType + ":NOT_FOUND"}, obs.statuses)
}

func TestJobTimer_WithoutObserver(t *testing.T) {
	SetJobObserver(nil)
	assert.NotPanics(t, func() { StartJob("metrics-no-observer").Done("") })
}
