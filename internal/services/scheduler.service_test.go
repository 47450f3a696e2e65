package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	schedule Schedule
	runs     chan struct{}
}

func (j *countingJob) Name() string       { return j.name }
func (j *countingJob) Schedule() Schedule { return j.schedule }

func (j *countingJob) Execute(context.Context) error {
	select {
	case j.runs <- struct{}{}:
	default:
	}
	return nil
}

func TestSchedule_Interval(t *testing.T) {
	assert.Equal(t, 10*time.Second, EveryTenSeconds.Interval())
	assert.Equal(t, 30*time.Second, EveryThirtySeconds.Interval())
	assert.Equal(t, time.Minute, EveryMinute.Interval())
	assert.Equal(t, "1m0s", EveryMinute.String())
}

func TestSchedulerService_Lifecycle(t *testing.T) {
	scheduler := NewSchedulerService()
	ctx := context.Background()

	require.NoError(t, scheduler.Start(ctx))
	assert.False(t, scheduler.IsRunning(), "no jobs means no start")

	job := &countingJob{name: "reset-check", schedule: EveryMinute, runs: make(chan struct{}, 1)}
	require.NoError(t, scheduler.AddJob(job))
	assert.Equal(t, 1, scheduler.GetJobCount())

	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsRunning())

	select {
	case <-job.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	require.NoError(t, scheduler.Stop(ctx))
	assert.False(t, scheduler.IsRunning())
	require.NoError(t, scheduler.Stop(ctx))
}
