package handlers

import (
	"errors"

	"hkboard/internal/models"
	"hkboard/internal/services"
	"hkboard/internal/storage"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrNoArchive),
		errors.Is(err, services.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidRoomStatus),
		errors.Is(err, models.ErrInvalidRoomNumber),
		errors.Is(err, models.ErrInvalidTask),
		errors.Is(err, models.ErrInvalidMessage),
		errors.Is(err, models.ErrUnknownIdentity),
		errors.Is(err, services.ErrConfirmationRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrTaskAlreadyCompleted),
		errors.Is(err, models.ErrTaskNotCompleted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrAdminRequired):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrBoardClosed),
		errors.Is(err, storage.ErrAllBackendsFailed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the status matching err. Server errors are logged
// and their detail stays out of the body.
func respondError(c *fiber.Ctx, log logger.Logger, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Er("request failed", err, "path", c.Path())
		if status == fiber.StatusServiceUnavailable {
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
