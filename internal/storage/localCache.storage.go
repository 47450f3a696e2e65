package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

const (
	LOCAL_CACHE_NAME  = "local"
	KV_FILE_NAME      = "board.json"
	SQLITE_CACHE_NAME = "board.db"
)

type Usage struct {
	KVBytes             int64      `json:"kvBytes"`
	KVQuotaBytes        int64      `json:"kvQuotaBytes"`
	SQLiteBytes         int64      `json:"sqliteBytes"`
	CapacityErrors      int        `json:"capacityErrors"`
	LastCapacityError   string     `json:"lastCapacityError,omitempty"`
	LastCapacityErrorAt *time.Time `json:"lastCapacityErrorAt,omitempty"`
	CorruptEntries      int        `json:"corruptEntries"`
}

// LocalCache is the lowest tier: a quota-limited KV file in front of a sqlite database. Both
// hold the same keys; either one alone is enough to serve a read. It also stores the
// process markers that never leave the machine.
type LocalCache struct {
	kv  *KVFile
	db  *SQLiteCache
	log logger.Logger

	mu    sync.Mutex
	usage Usage
}

func OpenLocalCache(ctx context.Context, dir string, quota int64) (*LocalCache, error) {
	db, err := OpenSQLiteCache(ctx, filepath.Join(dir, SQLITE_CACHE_NAME))
	if err != nil {
		return nil, err
	}
	return NewLocalCache(NewKVFile(filepath.Join(dir, KV_FILE_NAME), quota), db), nil
}

func NewLocalCache(kv *KVFile, db *SQLiteCache) *LocalCache {
	return &LocalCache{
		kv:    kv,
		db:    db,
		log:   logger.New("storage").File("localCache.storage"),
		usage: Usage{KVQuotaBytes: kv.Quota()},
	}
}

func (l *LocalCache) Name() string {
	return LOCAL_CACHE_NAME
}

func (l *LocalCache) Probe(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func (l *LocalCache) Read(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	value, ok, err := l.Get(ctx, string(collection))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, collection)
	}
	return json.RawMessage(value), nil
}

// Write stores the snapshot in both mechanisms. It fails only when neither accepts it;
// capacity errors are counted in Usage instead of being returned.
func (l *LocalCache) Write(ctx context.Context, req WriteRequest) error {
	if len(req.Snapshot) == 0 {
		return fmt.Errorf("%w: empty snapshot for %s", ErrUnsupported, req.Collection)
	}
	return l.Set(ctx, string(req.Collection), string(req.Snapshot))
}

// Get reads key from the KV file first, then from sqlite. Corrupt entries are deleted and
// treated as missing.
func (l *LocalCache) Get(ctx context.Context, key string) (string, bool, error) {
	log := l.log.Function("Get")

	value, ok, kvErr := l.kv.Get(key)
	if kvErr == nil && ok {
		return value, true, nil
	}
	if kvErr != nil {
		l.recordError(kvErr)
		log.Warn("kv file read failed, falling back to sqlite", "key", key, "error", kvErr)
	}

	value, ok, dbErr := l.db.Get(ctx, key)
	if dbErr != nil {
		l.recordError(dbErr)
		log.Warn("sqlite read failed", "key", key, "error", dbErr)
		if errors.Is(dbErr, ErrCorrupt) || errors.Is(kvErr, ErrCorrupt) {
			return "", false, nil
		}
		return "", false, dbErr
	}
	if ok && kvErr == nil {
		if err := l.kv.Set(key, value); err != nil {
			l.recordError(err)
		}
	}
	return value, ok, nil
}

func (l *LocalCache) Set(ctx context.Context, key, value string) error {
	log := l.log.Function("Set")

	kvErr := l.kv.Set(key, value)
	if kvErr != nil {
		l.recordError(kvErr)
		log.Warn("kv file write failed", "key", key, "error", kvErr)

		// The KV file still holds the previous value; drop it so reads reach sqlite.
		if err := l.kv.Delete(key); err != nil {
			log.Warn("failed to drop stale kv entry", "key", key, "error", err)
		}
	}

	dbErr := l.db.Set(ctx, key, value)
	if dbErr != nil {
		log.Warn("sqlite write failed", "key", key, "error", dbErr)
	}

	if kvErr != nil && dbErr != nil {
		return errors.Join(kvErr, dbErr)
	}
	return nil
}

func (l *LocalCache) Delete(ctx context.Context, key string) error {
	return errors.Join(l.kv.Delete(key), l.db.Delete(ctx, key))
}

// GetMarker reads a plain string marker such as the last reset date.
func (l *LocalCache) GetMarker(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	var value string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return "", false, fmt.Errorf("%w: marker %s: %w", ErrCorrupt, key, err)
	}
	return value, true, nil
}

func (l *LocalCache) SetMarker(ctx context.Context, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode marker %s: %w", key, err)
	}
	return l.Set(ctx, key, string(encoded))
}

func (l *LocalCache) Usage(ctx context.Context) Usage {
	log := l.log.Function("Usage")

	kvBytes, err := l.kv.Size()
	if err != nil {
		log.Warn("failed to size kv file", "error", err)
	}
	dbBytes, err := l.db.Size(ctx)
	if err != nil {
		log.Warn("failed to size sqlite cache", "error", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	usage := l.usage
	usage.KVBytes = kvBytes
	usage.SQLiteBytes = dbBytes
	return usage
}

func (l *LocalCache) Close() error {
	return l.db.Close()
}

func (l *LocalCache) recordError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	switch {
	case errors.Is(err, ErrCapacity):
		l.usage.CapacityErrors++
		l.usage.LastCapacityError = err.Error()
		l.usage.LastCapacityErrorAt = &now
	case errors.Is(err, ErrCorrupt):
		l.usage.CorruptEntries++
	}
}

var _ CollectionStore = (*LocalCache)(nil)
