package structured

import (
	"context"
	"errors"

	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/models"
	"hkboard/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Handler serves the structured store API. Every collection is readable as a plain JSON list
// and writable per entity or as a whole.
type Handler struct {
	api    *app.APIApp
	repos  repositories.Repository
	log    logger.Logger
	router fiber.Router
}

func Router(router fiber.Router, api *app.APIApp) (err error) {
	router.Use(middleware.TraceID())

	h := Handler{
		api:    api,
		repos:  api.Repos,
		log:    logger.New("structured").File("router"),
		router: router,
	}

	h.registerHealth()
	h.registerRooms()
	h.registerTasks()
	h.registerMessages()
	h.registerArchives()

	return nil
}

func (h Handler) read(ctx context.Context) *gorm.DB {
	return h.api.Database.SQLWithContext(ctx)
}

func (h Handler) execute(ctx context.Context, fn func(context.Context, *gorm.DB) error) error {
	return h.api.TransactionService.Execute(ctx, fn)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repositories.ErrConflict),
		errors.Is(err, models.ErrTaskAlreadyCompleted),
		errors.Is(err, models.ErrTaskNotCompleted):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrInvalidRoomStatus),
		errors.Is(err, models.ErrInvalidRoomNumber),
		errors.Is(err, models.ErrInvalidTask),
		errors.Is(err, models.ErrInvalidMessage):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (h Handler) fail(c *fiber.Ctx, function string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.log.Function(function).Er("request failed", err, "path", c.Path())
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Validation failed",
		"details": err.Error(),
	})
}
