package seed

import (
	"context"
	"time"

	"hkboard/config"
	"hkboard/internal/models"
	"hkboard/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"gorm.io/gorm"
)

// Seed fills a development database with a morning's worth of board activity.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	if config.Environment == "production" {
		return log.ErrMsg("refusing to seed a production database")
	}

	ctx := context.Background()
	now := time.Now()
	rooms := repositories.NewRoomRepository(nil)
	tasks := repositories.NewTaskRepository(nil)
	messages := repositories.NewMessageRepository(nil)

	statuses := map[string]models.RoomStatus{
		"101": models.RoomStatusCheckout,
		"102": models.RoomStatusDirty,
		"205": models.RoomStatusClean,
		"310": models.RoomStatusClosed,
	}
	for number, status := range statuses {
		if _, err := rooms.UpdateStatus(ctx, db, number, status, now); err != nil {
			return log.Err("failed to seed room status", err, "room", number)
		}
	}
	if _, err := rooms.UpdateGuests(ctx, db, "205", true, now); err != nil {
		return log.Err("failed to seed room guests", err)
	}

	admin := models.Actor{Name: models.ADMIN_IDENTITY, Type: models.SenderAdmin}
	seeded := []struct {
		room    string
		message string
	}{
		{"102", "Replace bathroom light bulb"},
		{"310", "Carpet cleaning scheduled"},
	}
	for _, s := range seeded {
		task, err := models.NewTask(s.room, s.message, admin.Name, now)
		if err != nil {
			return log.Err("failed to build task", err)
		}
		if err := tasks.Create(ctx, db, &task); err != nil {
			return log.Err("failed to seed task", err, "room", s.room)
		}
		notice := models.NewTaskMessage(admin, "New task for room "+s.room, task, now)
		if err := messages.Create(ctx, db, &notice); err != nil {
			return log.Err("failed to seed task notice", err, "room", s.room)
		}
	}

	welcome, err := models.NewChatMessage(admin, "Good morning team, checkouts are on floor 1 today.", now)
	if err != nil {
		return log.Err("failed to build message", err)
	}
	if err := messages.Create(ctx, db, &welcome); err != nil {
		return log.Err("failed to seed message", err)
	}

	log.Info("Seed complete", "tasks", len(seeded))
	return nil
}
