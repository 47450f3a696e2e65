package services

import (
	"hkboard/config"
	"hkboard/internal/storage"
	"hkboard/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
)

// Service is the set of services run by the dashboard agent.
type Service struct {
	Board       *BoardService
	DailyReset  *DailyResetService
	Session     *SessionService
	Health      *HealthService
	StorageInfo *StorageInfoService
	Scheduler   *SchedulerService
}

func New(coordinator *storage.Coordinator, local *storage.LocalCache, config config.Config) (Service, error) {
	log := logger.New("services").Function("New")

	location, err := utils.LoadLocation(config.PropertyTimezone)
	if err != nil {
		return Service{}, log.Err("failed to load property time zone", err)
	}

	tiers := coordinator.Tiers()
	probers := make([]Prober, 0, len(tiers))
	for _, tier := range tiers {
		probers = append(probers, tier)
	}

	boardService := NewBoardService(coordinator, nil)
	dailyResetService := NewDailyResetService(boardService, local, location, config.ArchiveRetentionDays, nil)
	sessionService := NewSessionService(local, nil)
	healthService := NewHealthService(probers, nil)
	storageInfoService := NewStorageInfoService(coordinator, local, boardService, healthService, dailyResetService)
	schedulerService := NewSchedulerService()

	return Service{
		Board:       boardService,
		DailyReset:  dailyResetService,
		Session:     sessionService,
		Health:      healthService,
		StorageInfo: storageInfoService,
		Scheduler:   schedulerService,
	}, nil
}
