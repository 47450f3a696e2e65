package websockets

import (
	"context"
	"testing"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	events chan services.BoardEvent
}

func (f *fakeFeed) Subscribe() (<-chan services.BoardEvent, func()) {
	return f.events, func() {}
}

type fakeSessions struct{}

func (fakeSessions) Get(context.Context, string) (models.Session, error) {
	return models.Session{}, services.ErrSessionNotFound
}

func newTestManager(t *testing.T) (*Manager, *fakeFeed) {
	t.Helper()
	feed := &fakeFeed{events: make(chan services.BoardEvent, 4)}
	manager, err := New(feed, fakeSessions{})
	require.NoError(t, err)
	t.Cleanup(manager.Close)
	return manager, feed
}

func addClient(m *Manager, status int) *Client {
	client := &Client{
		ID:      testClientID(status),
		Manager: m,
		Status:  status,
		send:    make(chan Message, SEND_CHANNEL_SIZE),
	}
	m.hub.register <- client
	return client
}

func testClientID(status int) string {
	if status == STATUS_AUTHENTICATED {
		return "authenticated"
	}
	return "anonymous"
}

func TestManager_ForwardsBoardEventsToAuthenticatedClients(t *testing.T) {
	manager, feed := newTestManager(t)

	authenticated := addClient(manager, STATUS_AUTHENTICATED)
	anonymous := addClient(manager, STATUS_UNAUTHENTICATED)
	require.Eventually(t, func() bool { return manager.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	feed.events <- services.BoardEvent{
		Type:       services.BoardCollectionChanged,
		Collection: models.CollectionRooms,
		Keys:       []string{"101"},
	}

	select {
	case message := <-authenticated.send:
		assert.Equal(t, MESSAGE_TYPE_BOARD, message.Type)
		assert.Equal(t, string(services.BoardCollectionChanged), message.Action)
		assert.Equal(t, "rooms", message.Data["collection"])
		assert.Equal(t, []string{"101"}, message.Data["keys"])
	case <-time.After(time.Second):
		t.Fatal("authenticated client did not receive the board event")
	}

	select {
	case message := <-anonymous.send:
		t.Fatalf("unauthenticated client received %s", message.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_UnregisterIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)

	client := addClient(manager, STATUS_AUTHENTICATED)
	manager.hub.unregister <- client
	manager.hub.unregister <- client

	require.Eventually(t, func() bool { return manager.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)

	client.enqueue(Message{Type: MESSAGE_TYPE_PONG})
}

func TestBoardMessage(t *testing.T) {
	at := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)
	message := boardMessage(services.BoardEvent{Type: services.BoardReloaded, At: at})

	assert.Equal(t, "board", message.Channel)
	assert.Equal(t, "reload", message.Action)
	assert.Equal(t, at, message.Timestamp)
	assert.Empty(t, message.Data)
	assert.NotEmpty(t, message.ID)
}
