package adminController

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/services"
	"hkboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type memoryStorage struct {
	mu   sync.Mutex
	data map[models.Collection]json.RawMessage
}

func (m *memoryStorage) Read(_ context.Context, collection models.Collection) (storage.ReadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[collection]
	return storage.ReadResult{Collection: collection, Data: data, Found: ok, Source: "memory"}, nil
}

func (m *memoryStorage) Write(_ context.Context, req storage.WriteRequest) storage.WriteResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[req.Collection] = req.Snapshot
	return storage.WriteResult{
		Collection: req.Collection,
		OK:         true,
		Outcomes:   []storage.Outcome{{Backend: "memory", Status: storage.OutcomeOK}},
	}
}

func newTestController(t *testing.T) (AdminControllerInterface, *services.BoardService, *memoryStorage) {
	t.Helper()

	store := &memoryStorage{data: make(map[models.Collection]json.RawMessage)}
	clock := func() time.Time { return testNow }
	board := services.NewBoardService(store, clock)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = board.Close(ctx)
	})
	require.NoError(t, board.Load(context.Background()))

	markers := &memoryMarkers{values: map[string]string{}}
	reset := services.NewDailyResetService(board, markers, time.UTC, 30, clock)
	return New(board, reset), board, store
}

type memoryMarkers struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryMarkers) GetMarker(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryMarkers) SetMarker(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func sessionFor(t *testing.T, identity string) models.Session {
	t.Helper()
	session, err := models.NewSession(identity, testNow)
	require.NoError(t, err)
	return session
}

func TestAdminController_RequiresAdmin(t *testing.T) {
	controller, _, _ := newTestController(t)
	ctx := context.Background()
	housekeeper := sessionFor(t, "housekeeper-1")

	_, err := controller.Export(ctx, housekeeper)
	assert.ErrorIs(t, err, services.ErrAdminRequired)

	_, err = controller.Import(ctx, housekeeper, []byte(`{"tasks":[]}`), true)
	assert.ErrorIs(t, err, services.ErrAdminRequired)

	_, err = controller.Reset(ctx, housekeeper, true)
	assert.ErrorIs(t, err, services.ErrAdminRequired)

	_, err = controller.UndoReset(ctx, housekeeper, true)
	assert.ErrorIs(t, err, services.ErrAdminRequired)
}

func TestAdminController_ImportRequiresConfirmation(t *testing.T) {
	controller, _, _ := newTestController(t)

	_, err := controller.Import(context.Background(), sessionFor(t, "admin"), []byte(`{"tasks":[]}`), false)
	assert.ErrorIs(t, err, services.ErrConfirmationRequired)
}

func TestAdminController_ImportRejectsUnknownDocument(t *testing.T) {
	controller, _, _ := newTestController(t)

	_, err := controller.Import(context.Background(), sessionFor(t, "admin"), []byte(`{"guests":[]}`), true)
	assert.Error(t, err)
}

func TestAdminController_ExportImport(t *testing.T) {
	controller, board, _ := newTestController(t)
	ctx := context.Background()
	admin := sessionFor(t, "admin")

	_, err := board.SendMessage(ctx, admin.Actor(), "Linen delivery at noon")
	require.NoError(t, err)

	exported, err := controller.Export(ctx, admin)
	require.NoError(t, err)
	require.Len(t, exported.Messages, 1)
	assert.Len(t, exported.Rooms, models.ROOM_COUNT)

	response, err := controller.Import(ctx, admin, []byte(`{"messages":[]}`), true)
	require.NoError(t, err)
	assert.Equal(t, []models.Collection{models.CollectionMessages}, response.Collections)
	assert.Len(t, response.Results, 1)
	assert.Empty(t, board.Messages())
	assert.Len(t, board.Rooms(), models.ROOM_COUNT)
}

func TestAdminController_ResetAndUndo(t *testing.T) {
	controller, board, _ := newTestController(t)
	ctx := context.Background()
	admin := sessionFor(t, "admin")

	_, err := board.UpdateRoomStatus(ctx, admin.Actor(), "101", models.RoomStatusClean)
	require.NoError(t, err)

	report, err := controller.Reset(ctx, admin, true)
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, "2026-10-15", report.ArchiveDate)

	room, err := board.Room("101")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusDefault, room.Status)

	undo, err := controller.UndoReset(ctx, admin, true)
	require.NoError(t, err)
	assert.True(t, undo.Applied)

	room, err = board.Room("101")
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusClean, room.Status)
	assert.Empty(t, board.Archives())
}
