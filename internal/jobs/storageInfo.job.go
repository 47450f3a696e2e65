package jobs

import (
	"context"

	"hkboard/internal/services"
)

type StorageInfoRefresher interface {
	Refresh(ctx context.Context) services.StorageInfo
}

type StorageInfoJob struct {
	info     StorageInfoRefresher
	schedule services.Schedule
}

func NewStorageInfoJob(info StorageInfoRefresher, schedule services.Schedule) *StorageInfoJob {
	return &StorageInfoJob{info: info, schedule: schedule}
}

func (j *StorageInfoJob) Name() string {
	return "StorageInfoRefresh"
}

func (j *StorageInfoJob) Execute(ctx context.Context) error {
	j.info.Refresh(ctx)
	return nil
}

func (j *StorageInfoJob) Schedule() services.Schedule {
	return j.schedule
}
