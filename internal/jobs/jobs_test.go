package jobs

import (
	"context"
	"errors"
	"testing"

	"hkboard/config"
	"hkboard/internal/services"

	"github.com/stretchr/testify/assert"
)

type fakeResetChecker struct {
	report services.ResetReport
	err    error
	calls  int
}

func (f *fakeResetChecker) CheckAndRun(context.Context) (services.ResetReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeBoard struct {
	loaded    bool
	loads     int
	refreshes int
	err       error
}

func (f *fakeBoard) Loaded() bool { return f.loaded }

func (f *fakeBoard) Load(context.Context) error {
	f.loads++
	if f.err == nil {
		f.loaded = true
	}
	return f.err
}

func (f *fakeBoard) Refresh(context.Context) error {
	f.refreshes++
	return f.err
}

type fakeHealth struct {
	badges []services.Badge
	calls  int
}

func (f *fakeHealth) Check(context.Context) services.HealthReport {
	badge := f.badges[f.calls%len(f.badges)]
	f.calls++
	return services.HealthReport{Badge: badge}
}

func TestResetCheckJob_Execute(t *testing.T) {
	checker := &fakeResetChecker{report: services.ResetReport{Date: "2026-10-16", Applied: true}}
	job := NewResetCheckJob(checker, EveryMinute)

	assert.Equal(t, "DailyResetCheck", job.Name())
	assert.Equal(t, services.EveryMinute, job.Schedule())
	assert.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 1, checker.calls)

	checker.err = errors.New("structured store down")
	assert.Error(t, job.Execute(context.Background()))
}

func TestBoardRefreshJob_Execute(t *testing.T) {
	board := &fakeBoard{}
	job := NewBoardRefreshJob(board, EveryThirtySeconds)
	ctx := context.Background()

	assert.NoError(t, job.Execute(ctx))
	assert.Equal(t, 1, board.loads)
	assert.Zero(t, board.refreshes)

	assert.NoError(t, job.Execute(ctx))
	assert.Equal(t, 1, board.loads)
	assert.Equal(t, 1, board.refreshes)

	board.err = errors.New("unreachable")
	assert.Error(t, job.Execute(ctx))
}

func TestHealthCheckJob_TracksBadge(t *testing.T) {
	health := &fakeHealth{badges: []services.Badge{services.BadgeOnline, services.BadgeDegraded}}
	job := NewHealthCheckJob(health, EveryThirtySeconds)

	assert.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, services.BadgeOnline, job.last)

	assert.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, services.BadgeDegraded, job.last)
}

func TestRegisterAllJobs_Disabled(t *testing.T) {
	scheduler := services.NewSchedulerService()

	err := RegisterAllJobs(scheduler, config.Config{SchedulerEnabled: false}, services.Service{})
	assert.NoError(t, err)
	assert.Zero(t, scheduler.GetJobCount())
}
