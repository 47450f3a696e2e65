package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	Timeout time.Duration
}

type probeResult struct {
	err error
	at  time.Time
}

// Coordinator routes collection reads and writes across ranked tiers. Reads take the
// highest-ranked tier that answers; writes go to every tier at once.
type Coordinator struct {
	tiers   []CollectionStore
	timeout time.Duration
	log     logger.Logger

	probes      *cache.Cache
	probeFlight singleflight.Group
	readFlight  singleflight.Group

	lockMu      sync.Mutex
	writeLocks  map[models.Collection]*sync.Mutex
	generations map[models.Collection]uint64

	statusMu  sync.Mutex
	lastWrite map[string]Outcome
	lastRead  map[string]time.Time

	background sync.WaitGroup
}

func NewCoordinator(tiers []CollectionStore, opts Options) *Coordinator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_BACKEND_TIMEOUT
	}

	return &Coordinator{
		tiers:       tiers,
		timeout:     timeout,
		log:         logger.New("storage").File("coordinator.storage"),
		probes:      cache.New(cache.NoExpiration, 0),
		writeLocks:  make(map[models.Collection]*sync.Mutex),
		generations: make(map[models.Collection]uint64),
		lastWrite:   make(map[string]Outcome),
		lastRead:    make(map[string]time.Time),
	}
}

func (c *Coordinator) Tiers() []CollectionStore {
	return append([]CollectionStore(nil), c.tiers...)
}

// Read returns the collection from the highest-ranked tier that has it. A tier that answers
// not-found counts as an answer: when no tier holds a value the result is empty with
// Found=false and no error.
func (c *Coordinator) Read(ctx context.Context, collection models.Collection) (ReadResult, error) {
	value, err, _ := c.readFlight.Do(string(collection), func() (any, error) {
		return c.read(ctx, collection)
	})
	if err != nil {
		return ReadResult{Collection: collection}, err
	}
	return value.(ReadResult), nil
}

func (c *Coordinator) read(ctx context.Context, collection models.Collection) (ReadResult, error) {
	log := c.log.Function("Read")
	generation := c.generation(collection)

	var failures []error
	var missing []CollectionStore
	for i, tier := range c.tiers {
		if err := c.reachable(ctx, tier); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", tier.Name(), ErrSkipped))
			continue
		}

		data, err := c.readTier(ctx, tier, collection)
		switch {
		case err == nil:
			targets := append(append([]CollectionStore(nil), missing...), c.tiers[i+1:]...)
			c.warmThrough(collection, data, generation, targets)
			return ReadResult{Collection: collection, Data: data, Found: true, Source: tier.Name()}, nil
		case errors.Is(err, ErrNotFound):
			missing = append(missing, tier)
		default:
			log.Warn("read failed, trying next backend", "backend", tier.Name(), "collection", collection, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", tier.Name(), err))
		}

		if ctx.Err() != nil {
			return ReadResult{}, ctx.Err()
		}
	}

	if len(missing) > 0 {
		return ReadResult{Collection: collection, Found: false, Source: missing[0].Name()}, nil
	}

	return ReadResult{}, fmt.Errorf("read %s: %w", collection, errors.Join(append([]error{ErrAllBackendsFailed}, failures...)...))
}

func (c *Coordinator) readTier(ctx context.Context, tier CollectionStore, collection models.Collection) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := tier.Read(ctx, collection)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUnreachable) {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return nil, err
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON for %s", ErrCorrupt, tier.Name(), collection)
	}

	c.statusMu.Lock()
	c.lastRead[tier.Name()] = time.Now()
	c.statusMu.Unlock()

	return data, nil
}

// warmThrough copies a value read from one tier into the lower tiers. It is dropped if any
// write for the collection happened after the read began.
func (c *Coordinator) warmThrough(collection models.Collection, data json.RawMessage, generation uint64, targets []CollectionStore) {
	if len(targets) == 0 {
		return
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		log := c.log.Function("warmThrough")

		lock := c.writeLock(collection)
		lock.Lock()
		defer lock.Unlock()

		if c.generation(collection) != generation {
			log.Debug("skipping warm-through, collection written since read", "collection", collection)
			return
		}

		req := WriteRequest{Collection: collection, Snapshot: data}
		for _, tier := range targets {
			if err := c.reachable(context.Background(), tier); err != nil {
				continue
			}
			outcome := c.writeTier(context.Background(), tier, req)
			if outcome.Status != OutcomeOK {
				log.Warn("warm-through failed", "backend", tier.Name(), "collection", collection, "error", outcome.Error)
			}
		}
	}()
}

// Write sends the request to every tier concurrently and waits for all of them. Writes to the
// same collection are serialized so an older snapshot never lands after a newer one.
func (c *Coordinator) Write(ctx context.Context, req WriteRequest) WriteResult {
	log := c.log.Function("Write")

	lock := c.writeLock(req.Collection)
	lock.Lock()
	defer lock.Unlock()
	c.bumpGeneration(req.Collection)

	outcomes := make([]Outcome, len(c.tiers))
	var wg sync.WaitGroup
	for i, tier := range c.tiers {
		if err := c.reachable(ctx, tier); err != nil {
			outcomes[i] = Outcome{
				Backend: tier.Name(),
				Status:  OutcomeSkipped,
				Error:   ErrSkipped.Error(),
				At:      time.Now(),
				err:     fmt.Errorf("%s: %w", tier.Name(), ErrSkipped),
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.writeTier(ctx, tier, req)
		}()
	}
	wg.Wait()

	result := WriteResult{Collection: req.Collection, Outcomes: outcomes}
	for _, outcome := range outcomes {
		if outcome.Status == OutcomeOK {
			result.OK = true
		}
	}

	c.statusMu.Lock()
	for _, outcome := range outcomes {
		c.lastWrite[outcome.Backend] = outcome
	}
	c.statusMu.Unlock()

	if !result.OK {
		log.Warn("write rejected by every backend", "collection", req.Collection, "error", result.Err())
	}

	return result
}

func (c *Coordinator) writeTier(ctx context.Context, tier CollectionStore, req WriteRequest) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := tier.Write(ctx, req)
	outcome := Outcome{
		Backend:    tier.Name(),
		Status:     OutcomeOK,
		DurationMs: time.Since(start).Milliseconds(),
		At:         time.Now(),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUnreachable) {
			err = fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		outcome.err = fmt.Errorf("%s: %w", tier.Name(), err)
	}
	return outcome
}

// reachable consults the cached probe for tier, probing once if it was never checked.
func (c *Coordinator) reachable(ctx context.Context, tier CollectionStore) error {
	if cached, ok := c.probes.Get(tier.Name()); ok {
		return cached.(probeResult).err
	}

	value, _, _ := c.probeFlight.Do(tier.Name(), func() (any, error) {
		if cached, ok := c.probes.Get(tier.Name()); ok {
			return cached, nil
		}
		return c.probe(ctx, tier), nil
	})
	return value.(probeResult).err
}

func (c *Coordinator) probe(ctx context.Context, tier CollectionStore) probeResult {
	log := c.log.Function("probe")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := probeResult{err: tier.Probe(ctx), at: time.Now()}
	if result.err != nil {
		log.Warn("backend unreachable, skipping until retried", "backend", tier.Name(), "error", result.err)
	} else {
		log.Info("backend reachable", "backend", tier.Name())
	}

	c.probes.Set(tier.Name(), result, cache.NoExpiration)
	return result
}

// ProbeAll makes sure every tier has a cached probe result.
func (c *Coordinator) ProbeAll(ctx context.Context) {
	for _, tier := range c.tiers {
		_ = c.reachable(ctx, tier)
	}
}

// Reprobe discards every cached probe result and checks each tier again.
func (c *Coordinator) Reprobe(ctx context.Context) []BackendStatus {
	c.probes.Flush()
	c.ProbeAll(ctx)
	return c.Status()
}

func (c *Coordinator) Status() []BackendStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	statuses := make([]BackendStatus, 0, len(c.tiers))
	for rank, tier := range c.tiers {
		status := BackendStatus{Name: tier.Name(), Rank: rank, LastReadAt: c.lastRead[tier.Name()]}
		if cached, ok := c.probes.Get(tier.Name()); ok {
			result := cached.(probeResult)
			status.Probed = true
			status.Reachable = result.err == nil
			if result.err != nil {
				status.ProbeError = result.err.Error()
			}
		}
		if outcome, ok := c.lastWrite[tier.Name()]; ok {
			status.LastWrite = &outcome
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Wait blocks until background warm-through writes finish.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

func (c *Coordinator) writeLock(collection models.Collection) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	lock, ok := c.writeLocks[collection]
	if !ok {
		lock = &sync.Mutex{}
		c.writeLocks[collection] = lock
	}
	return lock
}

func (c *Coordinator) generation(collection models.Collection) uint64 {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	return c.generations[collection]
}

func (c *Coordinator) bumpGeneration(collection models.Collection) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.generations[collection]++
}
