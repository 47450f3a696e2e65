package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

type ArchiveHandler struct {
	Handler
	board *services.BoardService
}

func NewArchiveHandler(app app.App, router fiber.Router) *ArchiveHandler {
	return &ArchiveHandler{
		Handler: newHandler(app, router, "archive.handler"),
		board:   app.Services.Board,
	}
}

func (h *ArchiveHandler) Register() {
	h.router.Get("/archives", h.middleware.RequireSession(), h.getArchives)
}

func (h *ArchiveHandler) getArchives(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"archives": h.board.Archives()})
}
