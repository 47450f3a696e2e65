package services

import (
	"context"
	"sync"
	"time"

	"hkboard/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
)

type Badge string

const (
	BadgeUnknown  Badge = "unknown"
	BadgeOnline   Badge = "online"
	BadgeDegraded Badge = "degraded"
	BadgeOffline  Badge = "offline"

	HEALTH_MAX_FAILURES = 2
	HEALTH_TIMEOUT      = 3 * time.Second
)

// Prober is a backend that can answer a cheap health check.
type Prober interface {
	Name() string
	Probe(ctx context.Context) error
}

type BackendHealth struct {
	Name             string    `json:"name"`
	Healthy          bool      `json:"healthy"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	LastError        string    `json:"lastError,omitempty"`
	LastCheck        time.Time `json:"lastCheck"`
	LastHealthy      time.Time `json:"lastHealthy,omitzero"`
}

type HealthReport struct {
	Badge     Badge           `json:"badge"`
	Backends  []BackendHealth `json:"backends"`
	CheckedAt time.Time       `json:"checkedAt,omitzero"`
}

// HealthService drives the connection badge. It probes backends on its own and never
// touches the coordinator's routing decisions.
type HealthService struct {
	probers []Prober
	now     func() time.Time
	mu      sync.RWMutex
	health  map[string]*BackendHealth
	checked time.Time
	log     logger.Logger
}

func NewHealthService(probers []Prober, now func() time.Time) *HealthService {
	if now == nil {
		now = time.Now
	}
	health := make(map[string]*BackendHealth, len(probers))
	for _, p := range probers {
		health[p.Name()] = &BackendHealth{Name: p.Name(), Healthy: true}
	}
	return &HealthService{
		probers: probers,
		now:     now,
		health:  health,
		log:     logger.New("healthService"),
	}
}

// Check probes every backend concurrently. A backend turns unhealthy after
// HEALTH_MAX_FAILURES failed checks in a row and healthy again on the first success.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	log := logger.New("healthService").TraceFromContext(ctx).Function("Check")

	errs := make([]error, len(h.probers))
	var wg sync.WaitGroup
	for i, p := range h.probers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, HEALTH_TIMEOUT)
			defer cancel()
			errs[i] = p.Probe(probeCtx)
		}()
	}
	wg.Wait()

	now := h.now()
	h.mu.Lock()
	for i, p := range h.probers {
		entry := h.health[p.Name()]
		entry.LastCheck = now
		if errs[i] == nil {
			if !entry.Healthy {
				log.Info("Backend recovered", "backend", p.Name())
			}
			entry.Healthy = true
			entry.ConsecutiveFails = 0
			entry.LastError = ""
			entry.LastHealthy = now
			continue
		}

		entry.ConsecutiveFails++
		entry.LastError = errs[i].Error()
		if entry.Healthy && entry.ConsecutiveFails >= HEALTH_MAX_FAILURES {
			entry.Healthy = false
			log.Warn("Backend unhealthy", "backend", p.Name(), "failures", entry.ConsecutiveFails, "error", errs[i])
		}
	}
	h.checked = now
	h.mu.Unlock()

	return h.Report()
}

func (h *HealthService) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := HealthReport{CheckedAt: h.checked, Backends: make([]BackendHealth, 0, len(h.probers))}
	for _, p := range h.probers {
		report.Backends = append(report.Backends, *h.health[p.Name()])
	}
	report.Badge = badgeFor(report.Backends, !h.checked.IsZero())
	return report
}

// badgeFor is online when every backend is healthy, offline when no remote backend is,
// and degraded otherwise. The local cache does not count as remote.
func badgeFor(backends []BackendHealth, checked bool) Badge {
	if !checked {
		return BadgeUnknown
	}

	remote, remoteHealthy, healthy := 0, 0, 0
	for _, b := range backends {
		if b.Healthy {
			healthy++
		}
		if b.Name == storage.LOCAL_CACHE_NAME {
			continue
		}
		remote++
		if b.Healthy {
			remoteHealthy++
		}
	}

	switch {
	case remote == 0 || remoteHealthy == 0:
		return BadgeOffline
	case healthy == len(backends):
		return BadgeOnline
	default:
		return BadgeDegraded
	}
}
