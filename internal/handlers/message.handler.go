package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/services"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	Handler
	board *services.BoardService
}

func NewMessageHandler(app app.App, router fiber.Router) *MessageHandler {
	return &MessageHandler{
		Handler: newHandler(app, router, "message.handler"),
		board:   app.Services.Board,
	}
}

func (h *MessageHandler) Register() {
	messages := h.router.Group("/messages", h.middleware.RequireSession())
	messages.Get("/", h.getMessages)
	messages.Post("/", h.sendMessage)
}

func (h *MessageHandler) getMessages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"messages": h.board.Messages()})
}

func (h *MessageHandler) sendMessage(c *fiber.Ctx) error {
	log := h.log.Function("sendMessage")
	session, _ := middleware.GetSession(c)

	var req types.SendMessageRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	message, err := h.board.SendMessage(c.UserContext(), session.Actor(), req.Content)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}
