package services

import (
	"sync"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/storage"
)

type SyncStatus string

const (
	SyncSynced   SyncStatus = "synced"
	SyncPending  SyncStatus = "pending"
	SyncDiverged SyncStatus = "diverged"
)

// SyncState is the persistence state of one entity as seen by this agent.
type SyncState struct {
	Status    SyncStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type EntityRef struct {
	Collection models.Collection `json:"collection"`
	Key        string            `json:"key"`
}

type syncEntry struct {
	state    SyncState
	inflight int
}

// syncTracker counts in-flight writes per entity. An entity only leaves pending when the
// last write that touched it settles, and then takes that write's outcome.
type syncTracker struct {
	mu      sync.Mutex
	entries map[EntityRef]*syncEntry
}

func newSyncTracker() *syncTracker {
	return &syncTracker{entries: make(map[EntityRef]*syncEntry)}
}

func (t *syncTracker) begin(refs []EntityRef, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ref := range refs {
		entry, ok := t.entries[ref]
		if !ok {
			entry = &syncEntry{}
			t.entries[ref] = entry
		}
		entry.inflight++
		entry.state = SyncState{Status: SyncPending, UpdatedAt: at}
	}
}

func (t *syncTracker) settle(refs []EntityRef, result storage.WriteResult, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ref := range refs {
		entry, ok := t.entries[ref]
		if !ok {
			continue
		}
		if entry.inflight > 0 {
			entry.inflight--
		}
		if entry.inflight > 0 {
			continue
		}
		if result.OK {
			entry.state = SyncState{Status: SyncSynced, UpdatedAt: at}
		} else {
			entry.state = SyncState{Status: SyncDiverged, Error: result.Err().Error(), UpdatedAt: at}
		}
	}
}

func (t *syncTracker) isPending(ref EntityRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[ref]
	return ok && entry.inflight > 0
}

// markSynced records entities taken from authoritative data, unless a write is still in flight.
func (t *syncTracker) markSynced(refs []EntityRef, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ref := range refs {
		entry, ok := t.entries[ref]
		if ok && entry.inflight > 0 {
			continue
		}
		t.entries[ref] = &syncEntry{state: SyncState{Status: SyncSynced, UpdatedAt: at}}
	}
}

// forget drops settled entries of collection that are not in keep.
func (t *syncTracker) forget(collection models.Collection, keep map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ref, entry := range t.entries {
		if ref.Collection != collection || entry.inflight > 0 {
			continue
		}
		if !keep[ref.Key] {
			delete(t.entries, ref)
		}
	}
}

func (t *syncTracker) get(ref EntityRef) SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[ref]; ok {
		return entry.state
	}
	return SyncState{Status: SyncSynced}
}

type SyncSummary struct {
	Synced   int              `json:"synced"`
	Pending  int              `json:"pending"`
	Diverged int              `json:"diverged"`
	Failures []DivergedEntity `json:"failures,omitempty"`
}

type DivergedEntity struct {
	EntityRef
	SyncState
}

func (t *syncTracker) summary() SyncSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	var summary SyncSummary
	for ref, entry := range t.entries {
		switch entry.state.Status {
		case SyncSynced:
			summary.Synced++
		case SyncPending:
			summary.Pending++
		case SyncDiverged:
			summary.Diverged++
			summary.Failures = append(summary.Failures, DivergedEntity{EntityRef: ref, SyncState: entry.state})
		}
	}
	return summary
}
