package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"hkboard/config"
	"hkboard/internal/app"
	"hkboard/internal/database"
	"hkboard/internal/models"
	"hkboard/internal/services"

	adminController "hkboard/internal/controllers/admin"
)

const FLUSH_TIMEOUT = 30 * time.Second

// Environment is the storage stack and services a command runs against. The operator acts
// as the admin identity.
type Environment struct {
	Context  context.Context
	Config   config.Config
	Database database.DB
	Storage  app.Storage
	Services services.Service
	Admin    adminController.AdminControllerInterface
	Session  models.Session
}

func newEnvironment(ctx context.Context) (*Environment, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var db database.DB
	if cfg.HasCacheServer() {
		if db, err = database.NewCacheOnly(cfg); err != nil {
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
	}

	storage, err := app.BuildStorage(ctx, cfg, db.Cache.Files)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc, err := services.New(storage.Coordinator, storage.Local, cfg)
	if err != nil {
		_ = storage.Close()
		_ = db.Close()
		return nil, err
	}

	session, err := models.NewSession(models.ADMIN_IDENTITY, time.Now())
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Context:  ctx,
		Config:   cfg,
		Database: db,
		Storage:  storage,
		Services: svc,
		Admin:    adminController.New(svc.Board, svc.DailyReset),
		Session:  session,
	}

	if err := svc.Board.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: board loaded without every backend: %v\n", err)
	}
	return env, nil
}

// Close flushes queued writes before releasing the backends.
func (e *Environment) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), FLUSH_TIMEOUT)
	defer cancel()

	var err error
	if e.Services.Board != nil {
		err = e.Services.Board.Close(ctx)
	}
	if closeErr := e.Storage.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := e.Database.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
