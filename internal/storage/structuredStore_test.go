package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"hkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func newStructuredTestServer(t *testing.T, handler http.HandlerFunc) (*StructuredStore, *[]recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return NewStructuredStore(server.URL+"/", server.Client()), &requests
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestStructuredStore_Probe(t *testing.T) {
	healthy, _ := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"ok","timestamp":"2026-10-16T08:00:00Z","database":"connected"}`)
	})
	assert.NoError(t, healthy.Probe(context.Background()))

	degraded, _ := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"status":"error","error":"database unavailable"}`)
	})
	err := degraded.Probe(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestStructuredStore_Read(t *testing.T) {
	store, requests := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rooms":
			writeJSON(w, http.StatusOK, `[{"number":"101","floor":1,"status":"dirty"}]`)
		case "/tasks":
			writeJSON(w, http.StatusOK, `{"tasks": []}`)
		case "/messages":
			writeJSON(w, http.StatusInternalServerError, `{"error":"boom"}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		}
	})
	ctx := context.Background()

	data, err := store.Read(ctx, models.CollectionRooms)
	require.NoError(t, err)
	var rooms []models.Room
	require.NoError(t, json.Unmarshal(data, &rooms))
	assert.Equal(t, models.RoomStatusDirty, rooms[0].Status)

	_, err = store.Read(ctx, models.CollectionTasks)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = store.Read(ctx, models.CollectionMessages)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "boom")

	_, err = store.Read(ctx, models.CollectionArchives)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "/rooms", (*requests)[0].Path)
}

func TestStructuredStore_WriteTranslatesChanges(t *testing.T) {
	store, requests := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})

	err := store.Write(context.Background(), WriteRequest{
		Collection: models.CollectionTasks,
		Snapshot:   json.RawMessage(`[]`),
		Changes: []Change{
			{Op: ChangeRoomStatus, Key: "204", Payload: map[string]any{"status": "clean"}},
			{Op: ChangeTaskComplete, Key: "t-1", Payload: map[string]any{"completedBy": "housekeeper-1"}},
			{Op: ChangeArchiveDelete, Key: "2026-10-15"},
		},
	})
	require.NoError(t, err)

	require.Len(t, *requests, 3)
	assert.Equal(t, recordedRequest{Method: http.MethodPut, Path: "/rooms/204/status", Body: `{"status":"clean"}`}, (*requests)[0])
	assert.Equal(t, http.MethodPut, (*requests)[1].Method)
	assert.Equal(t, "/tasks/t-1/complete", (*requests)[1].Path)
	assert.JSONEq(t, `{"completedBy":"housekeeper-1"}`, (*requests)[1].Body)
	assert.Equal(t, recordedRequest{Method: http.MethodDelete, Path: "/archives/2026-10-15"}, (*requests)[2])
}

func TestStructuredStore_WriteReplaceWithoutChanges(t *testing.T) {
	store, requests := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})

	require.NoError(t, store.Write(context.Background(), WriteRequest{
		Collection: models.CollectionMessages,
		Snapshot:   json.RawMessage(`[{"id":"m1"}]`),
	}))

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPut, (*requests)[0].Method)
	assert.Equal(t, "/messages", (*requests)[0].Path)
	assert.JSONEq(t, `[{"id":"m1"}]`, (*requests)[0].Body)
}

func TestStructuredStore_WriteStopsAtFirstRejection(t *testing.T) {
	store, requests := newStructuredTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"error":"task already completed"}`)
	})

	err := store.Write(context.Background(), WriteRequest{
		Collection: models.CollectionTasks,
		Changes: []Change{
			{Op: ChangeTaskComplete, Key: "t-1", Payload: map[string]any{"completedBy": "admin"}},
			{Op: ChangeTaskCreate, Payload: map[string]any{"id": "t-2"}},
		},
	})

	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "task already completed")
	assert.Len(t, *requests, 1)
}

func TestStructuredStore_Unreachable(t *testing.T) {
	store := NewStructuredStore("http://127.0.0.1:1", nil)

	_, err := store.Read(context.Background(), models.CollectionRooms)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, store.Probe(context.Background()), ErrUnreachable)
}
