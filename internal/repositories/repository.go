package repositories

import (
	"context"
	"errors"
	"time"

	"hkboard/internal/database"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	COLLECTION_CACHE_KEY     = "all"
	COLLECTION_CACHE_EXPIRY  = 5 * time.Minute
	COLLECTION_CACHE_TIMEOUT = 2 * time.Second
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record state conflict")
)

type Repository struct {
	Room    RoomRepository
	Task    TaskRepository
	Message MessageRepository
	Archive ArchiveRepository
}

func New(db database.DB) Repository {
	return Repository{
		Room:    NewRoomRepository(db.Cache.General),
		Task:    NewTaskRepository(db.Cache.General),
		Message: NewMessageRepository(db.Cache.General),
		Archive: NewArchiveRepository(db.Cache.General),
	}
}

// collectionCache keeps the last full list of one table in Valkey. A nil client disables it.
type collectionCache[T any] struct {
	cache  database.CacheClient
	prefix string
}

func (c collectionCache[T]) get(ctx context.Context) ([]T, bool) {
	if c.cache == nil {
		return nil, false
	}
	log := logger.New("collectionCache").TraceFromContext(ctx).Function("get")

	var cached []T
	builder := c.builder(ctx)
	found, err := builder.Get(&cached)
	if err != nil {
		log.Warn("failed to read collection cache", "key", builder.Key(), "error", err)
		return nil, false
	}
	return cached, found
}

func (c collectionCache[T]) set(ctx context.Context, items []T) {
	if c.cache == nil {
		return
	}
	log := logger.New("collectionCache").TraceFromContext(ctx).Function("set")

	if items == nil {
		items = []T{}
	}
	builder := c.builder(ctx)
	err := builder.
		WithStruct(items).
		WithTTL(COLLECTION_CACHE_EXPIRY).
		Set()
	if err != nil {
		log.Warn("failed to write collection cache", "key", builder.Key(), "error", err)
	}
}

// invalidate drops the cached list once the surrounding transaction commits.
func (c collectionCache[T]) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	database.AfterCommit(ctx, func() {
		c.drop(ctx)
	})
}

func (c collectionCache[T]) drop(ctx context.Context) {
	log := logger.New("collectionCache").TraceFromContext(ctx).Function("drop")

	builder := c.builder(ctx)
	if err := builder.Delete(); err != nil {
		log.Warn("failed to invalidate collection cache", "key", builder.Key(), "error", err)
	}
}

func (c collectionCache[T]) builder(ctx context.Context) *database.CacheBuilder {
	return database.NewCacheBuilder(c.cache, COLLECTION_CACHE_KEY).
		WithContext(ctx).
		WithHash(c.prefix).
		WithTimeout(COLLECTION_CACHE_TIMEOUT)
}
