package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/models"
	"hkboard/internal/services"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type RoomHandler struct {
	Handler
	board *services.BoardService
}

func NewRoomHandler(app app.App, router fiber.Router) *RoomHandler {
	return &RoomHandler{
		Handler: newHandler(app, router, "room.handler"),
		board:   app.Services.Board,
	}
}

func (h *RoomHandler) Register() {
	rooms := h.router.Group("/rooms", h.middleware.RequireSession())
	rooms.Get("/", h.getRooms)
	rooms.Get("/:number", h.getRoom)
	rooms.Put("/:number/status", h.updateStatus)
	rooms.Put("/:number/guests", h.setGuests)
}

func (h *RoomHandler) getRooms(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"rooms": h.board.Rooms()})
}

func (h *RoomHandler) getRoom(c *fiber.Ctx) error {
	room, err := h.board.Room(c.Params("number"))
	if err != nil {
		return respondError(c, h.log.Function("getRoom"), err)
	}
	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) updateStatus(c *fiber.Ctx) error {
	log := h.log.Function("updateStatus")
	session, _ := middleware.GetSession(c)

	var req types.UpdateRoomStatusRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	room, err := h.board.UpdateRoomStatus(
		c.UserContext(),
		session.Actor(),
		c.Params("number"),
		models.RoomStatus(req.Status),
	)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(fiber.Map{"room": room})
}

func (h *RoomHandler) setGuests(c *fiber.Ctx) error {
	log := h.log.Function("setGuests")
	session, _ := middleware.GetSession(c)

	var req types.SetRoomGuestsRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	room, err := h.board.SetRoomGuests(c.UserContext(), session.Actor(), c.Params("number"), *req.HasGuests)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(fiber.Map{"room": room})
}
