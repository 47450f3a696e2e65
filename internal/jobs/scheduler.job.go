package jobs

import (
	"hkboard/config"
	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	EveryTenSeconds    = services.EveryTenSeconds
	EveryThirtySeconds = services.EveryThirtySeconds
	EveryMinute        = services.EveryMinute
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	svc services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.SchedulerEnabled {
		log.Info("Scheduler disabled, skipping job registration")
		return nil
	}

	log.Info("Registering jobs")

	jobs := []services.Job{
		NewResetCheckJob(svc.DailyReset, EveryMinute),
		NewHealthCheckJob(svc.Health, EveryThirtySeconds),
		NewBoardRefreshJob(svc.Board, EveryThirtySeconds),
		NewStorageInfoJob(svc.StorageInfo, EveryTenSeconds),
	}
	for _, job := range jobs {
		if err := schedulerService.AddJob(job); err != nil {
			return log.Err("failed to register job", err, "job", job.Name())
		}
	}

	log.Info("Registered jobs", "count", len(jobs))
	return nil
}
