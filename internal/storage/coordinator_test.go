package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"hkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	name string

	mu       sync.Mutex
	data     map[models.Collection]json.RawMessage
	readErr  error
	writeErr error
	probeErr error
	delay    time.Duration
	reads    int
	writes   []WriteRequest
	probes   int
}

func newFakeStore(name string) *fakeStore {
	return &fakeStore{name: name, data: make(map[models.Collection]json.RawMessage)}
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Read(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	f.mu.Lock()
	f.reads++
	delay, readErr := f.delay, f.readErr
	value, ok := f.data[collection]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if readErr != nil {
		return nil, readErr
	}
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (f *fakeStore) Write(ctx context.Context, req WriteRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, req)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.data[req.Collection] = req.Snapshot
	return nil
}

func (f *fakeStore) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.probeErr
}

func (f *fakeStore) stored(collection models.Collection) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[collection]
	return value, ok
}

func (f *fakeStore) counts() (reads, writes, probes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, len(f.writes), f.probes
}

func newTiers() (*fakeStore, *fakeStore, *fakeStore) {
	return newFakeStore(STRUCTURED_STORE_NAME), newFakeStore(FILE_STORE_NAME), newFakeStore(LOCAL_CACHE_NAME)
}

func TestCoordinator_ReadPrefersHighestTier(t *testing.T) {
	structured, file, local := newTiers()
	structured.data[models.CollectionTasks] = json.RawMessage(`[{"id":"a"}]`)
	file.data[models.CollectionTasks] = json.RawMessage(`[{"id":"stale"}]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionTasks)
	coordinator.Wait()

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, STRUCTURED_STORE_NAME, result.Source)
	assert.JSONEq(t, `[{"id":"a"}]`, string(result.Data))

	fileReads, _, _ := file.counts()
	assert.Zero(t, fileReads)

	warmed, ok := file.stored(models.CollectionTasks)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a"}]`, string(warmed))
	warmedLocal, ok := local.stored(models.CollectionTasks)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a"}]`, string(warmedLocal))
}

func TestCoordinator_ReadFallsBackAndWarmsLowerTiers(t *testing.T) {
	structured, file, local := newTiers()
	structured.probeErr = ErrUnreachable
	file.data[models.CollectionRooms] = json.RawMessage(`[{"number":"101"}]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionRooms)
	coordinator.Wait()

	require.NoError(t, err)
	assert.Equal(t, FILE_STORE_NAME, result.Source)

	structuredReads, _, _ := structured.counts()
	assert.Zero(t, structuredReads, "unreachable tier must not be read")

	warmed, ok := local.stored(models.CollectionRooms)
	require.True(t, ok)
	assert.JSONEq(t, `[{"number":"101"}]`, string(warmed))

	_, structuredWrites, _ := structured.counts()
	assert.Zero(t, structuredWrites)
}

func TestCoordinator_ReadReturnsLocalWhenRemotesFail(t *testing.T) {
	structured, file, local := newTiers()
	structured.readErr = ErrUnreachable
	file.readErr = ErrUnreachable
	local.data[models.CollectionMessages] = json.RawMessage(`[{"id":"m1"}]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionMessages)

	require.NoError(t, err)
	assert.Equal(t, LOCAL_CACHE_NAME, result.Source)
	assert.JSONEq(t, `[{"id":"m1"}]`, string(result.Data))
}

func TestCoordinator_ReadAllBackendsFailed(t *testing.T) {
	structured, file, local := newTiers()
	structured.readErr = ErrUnreachable
	file.readErr = ErrUnreachable
	local.readErr = ErrCorrupt

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	_, err := coordinator.Read(context.Background(), models.CollectionTasks)

	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCoordinator_ReadNotFoundIsEmpty(t *testing.T) {
	structured, file, local := newTiers()
	structured.probeErr = ErrUnreachable

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionArchives)

	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Data)
}

func TestCoordinator_ReadSeedsTierThatHadNothing(t *testing.T) {
	structured, file, local := newTiers()
	structured.probeErr = ErrUnreachable
	local.data[models.CollectionTasks] = json.RawMessage(`[]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionTasks)
	coordinator.Wait()

	require.NoError(t, err)
	assert.Equal(t, LOCAL_CACHE_NAME, result.Source)
	seeded, ok := file.stored(models.CollectionTasks)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(seeded))
}

func TestCoordinator_ReadSkipsInvalidJSON(t *testing.T) {
	structured, file, local := newTiers()
	structured.data[models.CollectionRooms] = json.RawMessage(`{"rooms": [`)
	file.data[models.CollectionRooms] = json.RawMessage(`[]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result, err := coordinator.Read(context.Background(), models.CollectionRooms)

	require.NoError(t, err)
	assert.Equal(t, FILE_STORE_NAME, result.Source)
}

func TestCoordinator_ReadTimeoutFallsThrough(t *testing.T) {
	structured, file, local := newTiers()
	structured.delay = time.Second
	structured.data[models.CollectionTasks] = json.RawMessage(`[{"id":"slow"}]`)
	file.data[models.CollectionTasks] = json.RawMessage(`[{"id":"fast"}]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{Timeout: 20 * time.Millisecond})
	start := time.Now()
	result, err := coordinator.Read(context.Background(), models.CollectionTasks)

	require.NoError(t, err)
	assert.Equal(t, FILE_STORE_NAME, result.Source)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCoordinator_WriteSucceedsIfAnyTierAccepts(t *testing.T) {
	structured, file, local := newTiers()
	structured.probeErr = ErrUnreachable
	file.writeErr = ErrUnreachable

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result := coordinator.Write(context.Background(), WriteRequest{
		Collection: models.CollectionTasks,
		Snapshot:   json.RawMessage(`[]`),
	})

	assert.True(t, result.OK)
	assert.NoError(t, result.Err())
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, OutcomeSkipped, result.Outcomes[0].Status)
	assert.Equal(t, OutcomeFailed, result.Outcomes[1].Status)
	assert.NotEmpty(t, result.Outcomes[1].Error)
	assert.Equal(t, OutcomeOK, result.Outcomes[2].Status)

	_, structuredWrites, _ := structured.counts()
	assert.Zero(t, structuredWrites)
}

func TestCoordinator_WriteAllFailed(t *testing.T) {
	structured, file, local := newTiers()
	structured.writeErr = ErrUnreachable
	file.writeErr = ErrConflict
	local.writeErr = ErrCapacity

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	result := coordinator.Write(context.Background(), WriteRequest{
		Collection: models.CollectionRooms,
		Snapshot:   json.RawMessage(`[]`),
	})

	assert.False(t, result.OK)
	assert.ErrorIs(t, result.Err(), ErrAllBackendsFailed)
	assert.ErrorIs(t, result.Err(), ErrConflict)
}

func TestCoordinator_ProbeCachedUntilReprobe(t *testing.T) {
	structured, file, local := newTiers()
	structured.probeErr = ErrUnreachable

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	for range 3 {
		_, _ = coordinator.Read(context.Background(), models.CollectionTasks)
		coordinator.Write(context.Background(), WriteRequest{Collection: models.CollectionTasks, Snapshot: json.RawMessage(`[]`)})
	}
	coordinator.Wait()

	_, _, probes := structured.counts()
	assert.Equal(t, 1, probes)

	structured.mu.Lock()
	structured.probeErr = nil
	structured.mu.Unlock()

	statuses := coordinator.Reprobe(context.Background())
	_, _, probes = structured.counts()
	assert.Equal(t, 2, probes)
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Probed)
	assert.True(t, statuses[0].Reachable)
	require.NotNil(t, statuses[1].LastWrite)
	assert.Equal(t, OutcomeOK, statuses[1].LastWrite.Status)
}

func TestCoordinator_ConcurrentReadsCoalesce(t *testing.T) {
	structured, file, local := newTiers()
	structured.delay = 50 * time.Millisecond
	structured.data[models.CollectionRooms] = json.RawMessage(`[]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	coordinator.ProbeAll(context.Background())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Read(context.Background(), models.CollectionRooms)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	coordinator.Wait()

	reads, _, _ := structured.counts()
	assert.Less(t, reads, 5)
}

func TestCoordinator_WarmThroughDroppedAfterNewerWrite(t *testing.T) {
	structured, file, local := newTiers()
	structured.data[models.CollectionTasks] = json.RawMessage(`[{"id":"old"}]`)

	coordinator := NewCoordinator([]CollectionStore{structured, file, local}, Options{})
	coordinator.ProbeAll(context.Background())

	// Hold the collection lock so the warm-through queues behind the write.
	lock := coordinator.writeLock(models.CollectionTasks)
	lock.Lock()
	_, err := coordinator.Read(context.Background(), models.CollectionTasks)
	require.NoError(t, err)
	coordinator.bumpGeneration(models.CollectionTasks)
	local.mu.Lock()
	local.data[models.CollectionTasks] = json.RawMessage(`[{"id":"new"}]`)
	local.mu.Unlock()
	lock.Unlock()
	coordinator.Wait()

	value, ok := local.stored(models.CollectionTasks)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"new"}]`, string(value))
}
