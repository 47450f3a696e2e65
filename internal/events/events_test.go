package events

import (
	"testing"
	"time"

	"hkboard/config"
	"hkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Topic(t *testing.T) {
	bus := New(nil, config.Config{FileStorePrefix: "hkboard"})
	defer bus.Close()
	assert.Equal(t, "hkboard.collections", bus.topic(COLLECTIONS_CHANNEL))

	bare := New(nil, config.Config{})
	defer bare.Close()
	assert.Equal(t, "collections", bare.topic(COLLECTIONS_CHANNEL))
}

func TestEventBus_RegisterStartsOneListener(t *testing.T) {
	bus := New(nil, config.Config{})
	defer bus.Close()

	noop := func(Event) error { return nil }
	assert.True(t, bus.register(COLLECTIONS_CHANNEL, noop))
	assert.False(t, bus.register(COLLECTIONS_CHANNEL, noop))
	assert.Len(t, bus.handlers[COLLECTIONS_CHANNEL], 2)
}

func TestEventBus_DispatchIgnoresOwnEvents(t *testing.T) {
	bus := New(nil, config.Config{})
	defer bus.Close()

	received := make(chan models.Collection, 2)
	bus.register(COLLECTIONS_CHANNEL, collectionHandler(func(collection models.Collection) error {
		received <- collection
		return nil
	}))

	bus.dispatch(COLLECTIONS_CHANNEL, Event{
		Type:   COLLECTION_UPDATED,
		Origin: bus.Origin(),
		Data:   map[string]any{"collection": "rooms"},
	})
	bus.dispatch(COLLECTIONS_CHANNEL, Event{
		Type:   COLLECTION_UPDATED,
		Origin: "another-agent",
		Data:   map[string]any{"collection": "tasks"},
	})

	select {
	case collection := <-received:
		assert.Equal(t, models.CollectionTasks, collection)
	case <-time.After(time.Second):
		t.Fatal("event from another agent was not delivered")
	}

	select {
	case collection := <-received:
		t.Fatalf("unexpected delivery of %s", collection)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollectionHandler(t *testing.T) {
	var got []models.Collection
	handler := collectionHandler(func(collection models.Collection) error {
		got = append(got, collection)
		return nil
	})

	require.NoError(t, handler(Event{Type: "other", Data: map[string]any{"collection": "rooms"}}))
	require.NoError(t, handler(Event{Type: COLLECTION_UPDATED, Data: map[string]any{"collection": "guests"}}))
	require.NoError(t, handler(Event{Type: COLLECTION_UPDATED, Data: map[string]any{}}))
	require.NoError(t, handler(Event{Type: COLLECTION_UPDATED, Data: map[string]any{"collection": "messages"}}))

	assert.Equal(t, []models.Collection{models.CollectionMessages}, got)
}
