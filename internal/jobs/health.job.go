package jobs

import (
	"context"

	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type HealthChecker interface {
	Check(ctx context.Context) services.HealthReport
}

type HealthCheckJob struct {
	health   HealthChecker
	log      logger.Logger
	schedule services.Schedule
	last     services.Badge
}

func NewHealthCheckJob(health HealthChecker, schedule services.Schedule) *HealthCheckJob {
	return &HealthCheckJob{
		health:   health,
		log:      logger.New("healthCheckJob"),
		schedule: schedule,
		last:     services.BadgeUnknown,
	}
}

func (j *HealthCheckJob) Name() string {
	return "BackendHealthCheck"
}

// Execute probes the backends and logs badge transitions only.
func (j *HealthCheckJob) Execute(ctx context.Context) error {
	report := j.health.Check(ctx)
	if report.Badge != j.last {
		j.log.Function("Execute").Info("Connection badge changed", "from", j.last, "to", report.Badge)
		j.last = report.Badge
	}
	return nil
}

func (j *HealthCheckJob) Schedule() services.Schedule {
	return j.schedule
}
