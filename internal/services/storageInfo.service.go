package services

import (
	"context"
	"sync"
	"time"

	"hkboard/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
)

// BackendReporter exposes the coordinator's view of its tiers.
type BackendReporter interface {
	Status() []storage.BackendStatus
	Reprobe(ctx context.Context) []storage.BackendStatus
}

type UsageReporter interface {
	Usage(ctx context.Context) storage.Usage
}

type StorageInfo struct {
	Backends      []storage.BackendStatus `json:"backends"`
	Local         storage.Usage           `json:"local"`
	Sync          SyncSummary             `json:"sync"`
	Health        HealthReport            `json:"health"`
	LastResetDate string                  `json:"lastResetDate,omitempty"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// StorageInfoService assembles the storage panel shown to admins.
type StorageInfoService struct {
	backends BackendReporter
	usage    UsageReporter
	board    *BoardService
	health   *HealthService
	reset    *DailyResetService
	now      func() time.Time

	mu   sync.RWMutex
	info StorageInfo
	log  logger.Logger
}

func NewStorageInfoService(
	backends BackendReporter,
	usage UsageReporter,
	board *BoardService,
	health *HealthService,
	reset *DailyResetService,
) *StorageInfoService {
	return &StorageInfoService{
		backends: backends,
		usage:    usage,
		board:    board,
		health:   health,
		reset:    reset,
		now:      time.Now,
		log:      logger.New("storageInfoService"),
	}
}

func (s *StorageInfoService) Refresh(ctx context.Context) StorageInfo {
	log := logger.New("storageInfoService").TraceFromContext(ctx).Function("Refresh")

	info := StorageInfo{
		Backends:  s.backends.Status(),
		Sync:      s.board.SyncSummary(),
		UpdatedAt: s.now(),
	}
	if s.usage != nil {
		info.Local = s.usage.Usage(ctx)
	}
	if s.health != nil {
		info.Health = s.health.Report()
	}
	if s.reset != nil {
		lastReset, err := s.reset.LastResetDate(ctx)
		if err != nil {
			log.Warn("Could not read last reset date", "error", err)
		}
		info.LastResetDate = lastReset
	}

	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	return info
}

// Get returns the last refreshed info, refreshing first if there is none.
func (s *StorageInfoService) Get(ctx context.Context) StorageInfo {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()

	if info.UpdatedAt.IsZero() {
		return s.Refresh(ctx)
	}
	return info
}

// Retry clears the cached reachability of every backend and probes again.
func (s *StorageInfoService) Retry(ctx context.Context) StorageInfo {
	log := logger.New("storageInfoService").TraceFromContext(ctx).Function("Retry")

	statuses := s.backends.Reprobe(ctx)
	for _, status := range statuses {
		log.Info("Backend reprobed", "backend", status.Name, "reachable", status.Reachable)
	}
	return s.Refresh(ctx)
}
