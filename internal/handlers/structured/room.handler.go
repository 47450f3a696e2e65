package structured

import (
	"context"
	"time"

	"hkboard/internal/models"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func (h Handler) registerRooms() {
	rooms := h.router.Group("/rooms")
	rooms.Get("/", h.getRooms)
	rooms.Put("/", h.replaceRooms)
	rooms.Put("/:number/status", h.updateRoomStatus)
	rooms.Put("/:number/guests", h.updateRoomGuests)
}

func (h Handler) getRooms(c *fiber.Ctx) error {
	rooms, err := h.repos.Room.GetAll(c.UserContext(), h.read(c.UserContext()))
	if err != nil {
		return h.fail(c, "getRooms", err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return c.JSON(rooms)
}

func (h Handler) updateRoomStatus(c *fiber.Ctx) error {
	var req types.RoomStatusRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	var room *models.Room
	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		var err error
		room, err = h.repos.Room.UpdateStatus(ctx, tx, c.Params("number"), req.Status, time.Now())
		return err
	})
	if err != nil {
		return h.fail(c, "updateRoomStatus", err)
	}

	return c.JSON(fiber.Map{"success": true, "room": room})
}

func (h Handler) updateRoomGuests(c *fiber.Ctx) error {
	var req types.RoomGuestsRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	var room *models.Room
	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		var err error
		room, err = h.repos.Room.UpdateGuests(ctx, tx, c.Params("number"), *req.HasGuests, time.Now())
		return err
	})
	if err != nil {
		return h.fail(c, "updateRoomGuests", err)
	}

	return c.JSON(fiber.Map{"success": true, "room": room})
}

func (h Handler) replaceRooms(c *fiber.Ctx) error {
	var rooms []models.Room
	if err := c.BodyParser(&rooms); err != nil {
		return badRequest(c, err)
	}
	if err := models.ValidateCatalog(rooms); err != nil {
		return badRequest(c, err)
	}

	err := h.execute(c.UserContext(), func(ctx context.Context, tx *gorm.DB) error {
		return h.repos.Room.ReplaceAll(ctx, tx, rooms)
	})
	if err != nil {
		return h.fail(c, "replaceRooms", err)
	}

	return c.JSON(fiber.Map{"success": true, "count": len(rooms)})
}
