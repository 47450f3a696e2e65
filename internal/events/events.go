package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"hkboard/config"
	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const COLLECTIONS_CHANNEL Channel = "collections"

type MessageType string

const (
	COLLECTION_UPDATED MessageType = "collection_updated"
)

type Event struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Channel   Channel        `json:"channel"`
	Origin    string         `json:"origin"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

// EventBus relays events between agents over Valkey pub/sub. Every bus has its own origin id
// and drops the events it published itself.
type EventBus struct {
	client    valkey.Client
	logger    logger.Logger
	prefix    string
	origin    string
	handlers  map[Channel][]EventHandler
	listening map[Channel]bool
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(client valkey.Client, config config.Config) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		client:    client,
		logger:    logger.New("EventBus"),
		prefix:    config.FileStorePrefix,
		origin:    uuid.NewString(),
		handlers:  make(map[Channel][]EventHandler),
		listening: make(map[Channel]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (eb *EventBus) Origin() string {
	return eb.origin
}

// topic namespaces channels so agents of different boards sharing a Valkey never mix.
func (eb *EventBus) topic(channel Channel) string {
	if eb.prefix == "" {
		return channel.String()
	}
	return eb.prefix + "." + channel.String()
}

func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Channel == "" {
		event.Channel = channel
	}
	if event.Origin == "" {
		event.Origin = eb.origin
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "eventID", event.ID)
	}

	ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
	defer cancel()

	err = eb.client.Do(ctx, eb.client.B().Publish().Channel(eb.topic(channel)).Message(string(eventData)).Build()).
		Error()
	if err != nil {
		return log.Err("failed to publish event to valkey", err, "channel", channel, "eventID", event.ID)
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)
	return nil
}

func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) error {
	log := eb.logger.Function("Subscribe")

	if first := eb.register(channel, handler); first {
		go eb.listenToChannel(channel)
	}

	log.Info("Handler subscribed to channel", "channel", channel)
	return nil
}

// register adds handler and reports whether the channel still needs a listener.
func (eb *EventBus) register(channel Channel, handler EventHandler) bool {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	eb.handlers[channel] = append(eb.handlers[channel], handler)
	if eb.listening[channel] {
		return false
	}
	eb.listening[channel] = true
	return true
}

func (eb *EventBus) dispatch(channel Channel, event Event) {
	if event.Origin == eb.origin {
		return
	}

	log := eb.logger.Function("dispatch")

	eb.mutex.RLock()
	handlers := append([]EventHandler(nil), eb.handlers[channel]...)
	eb.mutex.RUnlock()

	for i, handler := range handlers {
		go func(h EventHandler, handlerIndex int) {
			if err := h(event); err != nil {
				log.Er("handler failed", err,
					"channel", channel,
					"eventID", event.ID,
					"handlerIndex", handlerIndex,
				)
			}
		}(handler, i)
	}
}

func (eb *EventBus) listenToChannel(channel Channel) {
	log := eb.logger.Function("listenToChannel")

	ctx, cancel := context.WithCancel(eb.ctx)
	defer cancel()

	log.Info("Starting to listen to channel", "channel", eb.topic(channel))

	err := eb.client.Receive(
		ctx,
		eb.client.B().Subscribe().Channel(eb.topic(channel)).Build(),
		func(msg valkey.PubSubMessage) {
			var event Event
			if err := json.Unmarshal([]byte(msg.Message), &event); err != nil {
				log.Er("failed to unmarshal event", err, "channel", channel, "message", msg.Message)
				return
			}
			eb.dispatch(channel, event)
		},
	)
	if err != nil && ctx.Err() == nil {
		log.Er("failed to listen to channel", err, "channel", channel)
	}
}

func (eb *EventBus) Close() error {
	log := eb.logger.Function("Close")

	eb.cancel()

	log.Info("EventBus closed")
	return nil
}

// PublishCollectionUpdated tells other agents that a shared collection changed.
func (eb *EventBus) PublishCollectionUpdated(collection models.Collection) error {
	return eb.Publish(COLLECTIONS_CHANNEL, Event{
		Type: COLLECTION_UPDATED,
		Data: map[string]any{"collection": string(collection)},
	})
}

// OnCollectionUpdated calls fn for every collection another agent changed.
func (eb *EventBus) OnCollectionUpdated(fn func(collection models.Collection) error) error {
	return eb.Subscribe(COLLECTIONS_CHANNEL, collectionHandler(fn))
}

func collectionHandler(fn func(collection models.Collection) error) EventHandler {
	return func(event Event) error {
		if event.Type != COLLECTION_UPDATED {
			return nil
		}
		name, _ := event.Data["collection"].(string)
		collection := models.Collection(name)
		if !collection.IsValid() {
			return nil
		}
		return fn(collection)
	}
}
