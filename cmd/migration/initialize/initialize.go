package initialize

import (
	"context"
	"time"

	"hkboard/config"
	"hkboard/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

// InitializeTables inserts the fixed room catalog. Existing rooms keep their state.
func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing room catalog")

	rooms := repositories.NewRoomRepository(nil)
	inserted, err := rooms.EnsureCatalog(context.Background(), db, time.Now())
	if err != nil {
		return log.Err("failed to initialize rooms", err)
	}

	log.Info("Table initialization complete", "roomsInserted", inserted)
	return nil
}
