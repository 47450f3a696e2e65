package app

import (
	"hkboard/config"
	"hkboard/internal/database"
	"hkboard/internal/repositories"
	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

// APIApp is the structured store server backed by PostgreSQL.
type APIApp struct {
	Database           database.DB
	Config             config.Config
	Repos              repositories.Repository
	TransactionService *services.TransactionService
}

func NewAPI() (*APIApp, error) {
	log := logger.New("app").Function("NewAPI")

	config, err := config.New()
	if err != nil {
		return &APIApp{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &APIApp{}, log.Err("failed to create database", err)
	}

	api := &APIApp{
		Database:           db,
		Config:             config,
		Repos:              repositories.New(db),
		TransactionService: services.NewTransactionService(db),
	}

	if err := api.validate(); err != nil {
		return &APIApp{}, log.Err("failed to validate api app", err)
	}

	return api, nil
}

func (a *APIApp) validate() error {
	log := logger.New("app").Function("validate")

	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	nilChecks := []any{
		a.Repos.Room,
		a.Repos.Task,
		a.Repos.Message,
		a.Repos.Archive,
		a.TransactionService,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *APIApp) Close() error {
	return a.Database.Close()
}
