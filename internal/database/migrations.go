package database

import (
	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

var MODELS_TO_MIGRATE = []any{
	&models.Room{},
	&models.Task{},
	&models.ChatMessage{},
	&models.Archive{},
}

// MigrateModels runs GORM AutoMigrate for every structured store table.
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	for _, model := range MODELS_TO_MIGRATE {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("Failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes adds the indexes GORM tags cannot express.
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_tasks_open ON tasks(room_number) WHERE completed = false",
		"CREATE INDEX IF NOT EXISTS idx_archives_created_at ON archives(created_at DESC)",
	}

	for _, indexSQL := range indexes {
		if err := db.SQL.Exec(indexSQL).Error; err != nil {
			log.Warn("Failed to create index", "sql", indexSQL, "error", err)
		}
	}

	return nil
}
