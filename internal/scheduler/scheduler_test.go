package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sweeper/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

type noRetryJob struct {
	countingJob
}

func (j *noRetryJob) MaxRetries() int { return 0 }

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 */5 * * * *"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "0 */5 * * * *"}), "duplicate")
	assert.Error(t, s.AddJob(&countingJob{name: "b", schedule: "every five minutes"}), "bad cron")

	assert.Equal(t, []string{"a"}, s.GetAllJobs())

	// 시작 전에는 Next가 zero
	_, err := s.NextRun("a")
	require.NoError(t, err)

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunNow_Retries(t *testing.T) {
	s := New(logger.Nop(), WithRetries(2, time.Millisecond))
	job := &countingJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), job.calls.Load())

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	assert.Len(t, history.Results, 1)
}

func TestRunNow_RetryableOverride(t *testing.T) {
	s := New(logger.Nop(), WithRetries(3, time.Millisecond))
	job := &noRetryJob{countingJob{name: "sweep:test", schedule: "@daily", failures: 5}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunNow(context.Background(), "sweep:test")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "transient", result.Error)

	stats := s.GetJobStats()["sweep:test"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := New(logger.Nop())
	_, err := s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
}

func TestStartStop_RunsScheduledJob(t *testing.T) {
	s := New(logger.Nop(), WithRetries(0, 0))
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	require.Eventually(t, func() bool { return job.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetLatestResults(1000), maxHistory)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.01)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)

	empty := &JobHistory{}
	assert.Zero(t, empty.GetSuccessRate())
	assert.Empty(t, empty.GetLatestResults(5))
}
