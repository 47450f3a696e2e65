package services

import (
	"context"
	"testing"

	"hkboard/internal/constants"
	"hkboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackends struct {
	statuses []storage.BackendStatus
	reprobes int
}

func (f *fakeBackends) Status() []storage.BackendStatus {
	return f.statuses
}

func (f *fakeBackends) Reprobe(context.Context) []storage.BackendStatus {
	f.reprobes++
	for i := range f.statuses {
		f.statuses[i].Probed = true
		f.statuses[i].Reachable = true
	}
	return f.statuses
}

type fakeUsage struct {
	usage storage.Usage
}

func (f fakeUsage) Usage(context.Context) storage.Usage {
	return f.usage
}

func TestStorageInfoService_Refresh(t *testing.T) {
	backends := &fakeBackends{statuses: []storage.BackendStatus{
		{Name: storage.STRUCTURED_STORE_NAME, Rank: 0, Probed: true, Reachable: false, ProbeError: "refused"},
		{Name: storage.LOCAL_CACHE_NAME, Rank: 1, Probed: true, Reachable: true},
	}}
	usage := fakeUsage{usage: storage.Usage{KVBytes: 2048, KVQuotaBytes: 4096}}

	board := newTestBoard(t, newFakeBoardStorage())
	markers := newFakeMarkers()
	require.NoError(t, markers.SetMarker(context.Background(), constants.LastResetMarker, "2026-10-16"))
	reset := NewDailyResetService(board, markers, nil, 0, fixedClock)

	service := NewStorageInfoService(backends, usage, board, nil, reset)
	service.now = fixedClock

	info := service.Get(context.Background())
	assert.Equal(t, testNow, info.UpdatedAt)
	assert.Len(t, info.Backends, 2)
	assert.Equal(t, int64(2048), info.Local.KVBytes)
	assert.Equal(t, "2026-10-16", info.LastResetDate)
	assert.Zero(t, info.Sync.Diverged)
}

func TestStorageInfoService_Retry(t *testing.T) {
	backends := &fakeBackends{statuses: []storage.BackendStatus{
		{Name: storage.FILE_STORE_NAME, Probed: true, Reachable: false},
	}}
	board := newTestBoard(t, newFakeBoardStorage())
	service := NewStorageInfoService(backends, nil, board, nil, nil)

	info := service.Retry(context.Background())
	assert.Equal(t, 1, backends.reprobes)
	require.Len(t, info.Backends, 1)
	assert.True(t, info.Backends[0].Reachable)
	assert.Empty(t, info.LastResetDate)
}
