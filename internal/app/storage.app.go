package app

import (
	"context"
	"net/http"

	"hkboard/config"
	"hkboard/internal/database"
	"hkboard/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
)

// Storage is the tier stack of one agent. Structured and File are nil when not configured;
// Local is always present.
type Storage struct {
	Coordinator *storage.Coordinator
	Structured  *storage.StructuredStore
	File        *storage.FileStore
	Local       *storage.LocalCache
}

// BuildStorage assembles the tiers in priority order: structured store, file store, local
// cache. files may be nil when no Valkey is configured.
func BuildStorage(ctx context.Context, config config.Config, files database.CacheClient) (Storage, error) {
	log := logger.New("app").TraceFromContext(ctx).Function("BuildStorage")

	var result Storage
	var tiers []storage.CollectionStore

	if config.StructuredStoreURL != "" {
		result.Structured = storage.NewStructuredStore(
			config.StructuredStoreURL,
			&http.Client{Timeout: config.BackendTimeout()},
		)
		tiers = append(tiers, result.Structured)
	} else {
		log.Info("No structured store configured")
	}

	if files != nil {
		result.File = storage.NewFileStore(
			storage.NewValkeyBlobClient(files, config.FileStorePrefix),
			config.FileStorePrefix,
		)
		tiers = append(tiers, result.File)
	} else {
		log.Info("No file store configured")
	}

	local, err := storage.OpenLocalCache(ctx, config.LocalCacheDir, config.LocalCacheQuotaBytes)
	if err != nil {
		return Storage{}, log.Err("failed to open local cache", err, "dir", config.LocalCacheDir)
	}
	result.Local = local
	tiers = append(tiers, local)

	result.Coordinator = storage.NewCoordinator(tiers, storage.Options{Timeout: config.BackendTimeout()})

	log.Info("Storage ready", "tiers", len(tiers))
	return result, nil
}

func (s Storage) Close() error {
	if s.Coordinator != nil {
		s.Coordinator.Wait()
	}
	if s.Local != nil {
		return s.Local.Close()
	}
	return nil
}
