package jobs

import (
	"context"

	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type ResetChecker interface {
	CheckAndRun(ctx context.Context) (services.ResetReport, error)
}

// ResetCheckJob runs the daily reset as soon as the property date rolls over.
type ResetCheckJob struct {
	reset    ResetChecker
	log      logger.Logger
	schedule services.Schedule
}

func NewResetCheckJob(reset ResetChecker, schedule services.Schedule) *ResetCheckJob {
	log := logger.New("resetCheckJob")
	log.Info("Creating new reset check job", "schedule", schedule)

	return &ResetCheckJob{
		reset:    reset,
		log:      log,
		schedule: schedule,
	}
}

func (j *ResetCheckJob) Name() string {
	return "DailyResetCheck"
}

func (j *ResetCheckJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	report, err := j.reset.CheckAndRun(ctx)
	if err != nil {
		return log.Err("daily reset check failed", err)
	}

	if report.Applied {
		log.Info("Daily reset applied by scheduler",
			"date", report.Date,
			"archiveDate", report.ArchiveDate,
			"carriedOver", report.CarriedOver,
		)
	}
	return nil
}

func (j *ResetCheckJob) Schedule() services.Schedule {
	return j.schedule
}
