package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"hkboard/internal/constants"
	"hkboard/internal/models"
	"hkboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarkers struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{values: make(map[string]string)}
}

func (f *fakeMarkers) GetMarker(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeMarkers) SetMarker(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeMarkers) get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

func resetFixture() models.Dataset {
	yesterday := testNow.Add(-20 * time.Hour)
	rooms := models.GenerateRoomCatalog(yesterday)
	rooms[0].Status = models.RoomStatusCheckout
	rooms[1].Status = models.RoomStatusClean
	rooms[2].Status = models.RoomStatusDirty
	rooms[3].Status = models.RoomStatusClosed
	rooms[4].HasGuests = true

	open, _ := models.NewTask("101", "Replace lamp", "admin", yesterday)
	done, _ := models.NewTask("102", "Extra pillows", "admin", yesterday)
	_ = done.Complete("housekeeper-2", yesterday.Add(time.Hour))

	message, _ := models.NewChatMessage(models.Actor{Name: "admin", Type: models.SenderAdmin}, "Morning!", yesterday)

	return models.Dataset{
		Rooms:    rooms,
		Tasks:    []models.Task{open, done},
		Messages: []models.ChatMessage{message},
		Archives: []models.Archive{
			models.NewArchive("2026-09-01", models.ArchiveData{}, yesterday),
			models.NewArchive("2026-10-10", models.ArchiveData{}, yesterday),
		},
	}
}

func TestApplyDailyReset(t *testing.T) {
	state := resetFixture()

	transition, err := ApplyDailyReset(state, "2026-10-16", testNow, 30)
	require.NoError(t, err)

	assert.False(t, transition.AlreadyApplied)
	assert.Equal(t, "2026-10-15", transition.ArchiveDate)

	t.Run("checkout rooms survive, others return to default", func(t *testing.T) {
		next := transition.Next.Rooms
		require.Len(t, next, models.ROOM_COUNT)
		assert.Equal(t, models.RoomStatusCheckout, next[0].Status)
		for _, room := range next[1:] {
			assert.Equal(t, models.RoomStatusDefault, room.Status, room.Number)
		}
		assert.True(t, next[4].HasGuests)
	})

	t.Run("incomplete tasks carried over unchanged", func(t *testing.T) {
		require.Len(t, transition.Next.Tasks, 1)
		assert.Equal(t, state.Tasks[0], transition.Next.Tasks[0])
		assert.Equal(t, 1, transition.CarriedOver)
	})

	t.Run("messages replaced by one system announcement", func(t *testing.T) {
		require.Len(t, transition.Next.Messages, 1)
		announcement := transition.Next.Messages[0]
		assert.Equal(t, "system-reset-2026-10-16", announcement.ID)
		assert.Equal(t, models.SenderSystem, announcement.SenderType)
		assert.Contains(t, announcement.Content, "1 incomplete task")
		assert.NoError(t, announcement.Validate())
	})

	t.Run("archive holds the previous day", func(t *testing.T) {
		archive, ok := models.LatestArchive(transition.Next.Archives)
		require.True(t, ok)
		assert.Equal(t, "2026-10-15", archive.Date)
		data := archive.Data.Data()
		assert.Len(t, data.Tasks, 2)
		assert.Len(t, data.Messages, 1)
		assert.Equal(t, models.RoomStatusClean, data.Rooms[1].Status)
	})

	t.Run("archives beyond retention are pruned", func(t *testing.T) {
		assert.Equal(t, []string{"2026-09-01"}, transition.Pruned)
		assert.False(t, models.HasArchive(transition.Next.Archives, "2026-09-01"))
		assert.True(t, models.HasArchive(transition.Next.Archives, "2026-10-10"))
	})

	t.Run("archive changes for the structured store", func(t *testing.T) {
		require.Equal(t, models.CollectionArchives, transition.Updates[0].Collection)
		changes := transition.Updates[0].Changes
		require.Len(t, changes, 2)
		assert.Equal(t, storage.ChangeArchiveCreate, changes[0].Op)
		assert.Equal(t, "2026-10-15", changes[0].Key)
		assert.Equal(t, storage.ChangeArchiveDelete, changes[1].Op)
		assert.Equal(t, "2026-09-01", changes[1].Key)
	})

	t.Run("input state is untouched", func(t *testing.T) {
		assert.Equal(t, models.RoomStatusClean, state.Rooms[1].Status)
		assert.Len(t, state.Tasks, 2)
	})
}

func TestApplyDailyReset_Idempotent(t *testing.T) {
	first, err := ApplyDailyReset(resetFixture(), "2026-10-16", testNow, 30)
	require.NoError(t, err)

	second, err := ApplyDailyReset(first.Next, "2026-10-16", testNow.Add(time.Minute), 30)
	require.NoError(t, err)

	assert.True(t, second.AlreadyApplied)
	assert.Empty(t, second.Updates)
	assert.Equal(t, first.Next, second.Next)

	count := 0
	for _, archive := range second.Next.Archives {
		if archive.Date == "2026-10-15" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestApplyDailyReset_InvalidDate(t *testing.T) {
	_, err := ApplyDailyReset(resetFixture(), "16/10/2026", testNow, 30)
	assert.Error(t, err)
}

func newResetFixture(t *testing.T) (*DailyResetService, *BoardService, *fakeBoardStorage, *fakeMarkers) {
	t.Helper()

	store := newFakeBoardStorage()
	state := resetFixture()
	store.set(models.CollectionRooms, state.Rooms)
	store.set(models.CollectionTasks, state.Tasks)
	store.set(models.CollectionMessages, state.Messages)
	store.set(models.CollectionArchives, state.Archives)

	board := newTestBoard(t, store)
	require.NoError(t, board.Load(context.Background()))

	markers := newFakeMarkers()
	reset := NewDailyResetService(board, markers, time.UTC, 30, fixedClock)
	return reset, board, store, markers
}

func TestDailyResetService_CheckAndRun(t *testing.T) {
	reset, board, store, markers := newResetFixture(t)
	ctx := context.Background()

	report, err := reset.CheckAndRun(ctx)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, "2026-10-16", report.Date)
	assert.Equal(t, "2026-10-15", report.ArchiveDate)
	assert.Len(t, report.Results, len(models.Collections))
	assert.Equal(t, "2026-10-16", markers.get(constants.LastResetMarker))

	assert.Len(t, board.Tasks(), 1)
	assert.Len(t, board.Messages(), 1)

	writesAfterFirst := len(store.writesFor(models.CollectionArchives))

	again, err := reset.CheckAndRun(ctx)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, writesAfterFirst, len(store.writesFor(models.CollectionArchives)))
}

func TestDailyResetService_CheckAndRunWithoutMarkerFindsArchive(t *testing.T) {
	reset, _, _, markers := newResetFixture(t)
	ctx := context.Background()

	_, err := reset.CheckAndRun(ctx)
	require.NoError(t, err)

	markers.mu.Lock()
	delete(markers.values, constants.LastResetMarker)
	markers.mu.Unlock()

	report, err := reset.CheckAndRun(ctx)
	require.NoError(t, err)
	assert.True(t, report.AlreadyApplied)
	assert.False(t, report.Applied)
	assert.Equal(t, "2026-10-16", markers.get(constants.LastResetMarker))
}

func TestDailyResetService_MarkerNotSetWhenPersistFails(t *testing.T) {
	reset, _, store, markers := newResetFixture(t)

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	_, err := reset.CheckAndRun(context.Background())
	assert.Error(t, err)
	assert.Empty(t, markers.get(constants.LastResetMarker))
}

func TestDailyResetService_ManualResetRequiresConfirmedAdmin(t *testing.T) {
	reset, _, _, _ := newResetFixture(t)
	ctx := context.Background()

	adminSession, err := models.NewSession("admin", testNow)
	require.NoError(t, err)
	housekeeperSession, err := models.NewSession("housekeeper-3", testNow)
	require.NoError(t, err)

	_, err = reset.ManualReset(ctx, housekeeperSession, true)
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = reset.ManualReset(ctx, adminSession, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	report, err := reset.ManualReset(ctx, adminSession, true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, ResetOutcomeApplied, report.Outcome)
	assert.Contains(t, report.Message, "Reset applied for 2026-10-16")

	report, err = reset.ManualReset(ctx, adminSession, true)
	require.NoError(t, err)
	assert.True(t, report.AlreadyApplied)
	assert.False(t, report.Applied)
	assert.Equal(t, ResetOutcomeAlreadyApplied, report.Outcome)
	assert.Equal(t, "Nothing to reset: the reset for 2026-10-16 already ran and 2026-10-15 is archived", report.Message)
}

func TestDailyResetService_UndoLastReset(t *testing.T) {
	reset, board, _, markers := newResetFixture(t)
	ctx := context.Background()
	adminSession, err := models.NewSession("admin", testNow)
	require.NoError(t, err)

	before := board.Snapshot()

	_, err = reset.CheckAndRun(ctx)
	require.NoError(t, err)

	report, err := reset.UndoLastReset(ctx, adminSession, true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, ResetOutcomeRestored, report.Outcome)
	assert.Equal(t, "2026-10-15", report.ArchiveDate)

	after := board.Snapshot()
	assert.Len(t, after.Tasks, len(before.Tasks))
	assert.Len(t, after.Messages, len(before.Messages))
	assert.Equal(t, models.RoomStatusClean, after.Rooms[1].Status)
	assert.False(t, models.HasArchive(after.Archives, "2026-10-15"))
	assert.Equal(t, "2026-10-16", markers.get(constants.LastResetMarker))
}

func TestDailyResetService_UndoWithoutArchive(t *testing.T) {
	board := newTestBoard(t, newFakeBoardStorage())
	reset := NewDailyResetService(board, newFakeMarkers(), time.UTC, 30, fixedClock)
	adminSession, err := models.NewSession("admin", testNow)
	require.NoError(t, err)

	_, err = reset.UndoLastReset(context.Background(), adminSession, true)
	assert.ErrorIs(t, err, ErrNoArchive)
}
