package app

import (
	"context"
	"time"

	"hkboard/config"
	"hkboard/internal/database"
	"hkboard/internal/events"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/models"
	"hkboard/internal/services"
	"hkboard/internal/websockets"

	logger "github.com/Bparsons0904/goLogger"

	adminController "hkboard/internal/controllers/admin"
)

const SHUTDOWN_FLUSH_TIMEOUT = 10 * time.Second

// App is the dashboard agent running next to the tablets.
type App struct {
	Database   database.DB
	Storage    Storage
	Services   services.Service
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	EventBus   *events.EventBus
	Config     config.Config

	// Controllers
	AdminController adminController.AdminControllerInterface
}

func New(ctx context.Context) (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	var db database.DB
	if config.HasCacheServer() {
		db, err = database.NewCacheOnly(config)
		if err != nil {
			return &App{}, log.Err("failed to create cache database", err)
		}
	} else {
		log.Warn("No Valkey configured, running without the shared file store")
	}

	storage, err := BuildStorage(ctx, config, db.Cache.Files)
	if err != nil {
		return &App{}, log.Err("failed to build storage", err)
	}

	svc, err := services.New(storage.Coordinator, storage.Local, config)
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}

	var eventBus *events.EventBus
	if db.Cache.Events != nil {
		eventBus = events.New(db.Cache.Events, config)
		if storage.File != nil {
			storage.File.OnWrite(func(collection models.Collection) {
				if err := eventBus.PublishCollectionUpdated(collection); err != nil {
					log.Warn("failed to announce collection update", "collection", collection, "error", err)
				}
			})
		}
		err = eventBus.OnCollectionUpdated(func(collection models.Collection) error {
			return svc.Board.Refresh(context.Background())
		})
		if err != nil {
			return &App{}, log.Err("failed to subscribe to collection updates", err)
		}
	}

	websocket, err := websockets.New(svc.Board, svc.Session)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(svc.Session, config)
	adminController := adminController.New(svc.Board, svc.DailyReset)

	app := &App{
		Database:        db,
		Storage:         storage,
		Services:        svc,
		Middleware:      middleware,
		Websocket:       websocket,
		EventBus:        eventBus,
		Config:          config,
		AdminController: adminController,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	if a.Storage.Coordinator == nil || a.Storage.Local == nil {
		return log.ErrMsg("storage is not initialized")
	}

	nilChecks := []any{
		a.Websocket,
		a.Services.Board,
		a.Services.DailyReset,
		a.Services.Session,
		a.Services.Health,
		a.Services.StorageInfo,
		a.Services.Scheduler,
		a.AdminController,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

// Close stops background work, flushes queued board writes and releases every backend.
func (a *App) Close() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_FLUSH_TIMEOUT)
	defer cancel()

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(ctx); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Websocket != nil {
		a.Websocket.Close()
	}

	if a.Services.Board != nil {
		if closeErr := a.Services.Board.Close(ctx); closeErr != nil {
			err = closeErr
		}
	}

	if closeErr := a.Storage.Close(); closeErr != nil {
		err = closeErr
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
