package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	Handler
	health  *services.HealthService
	board   *services.BoardService
	version string
}

func NewHealthHandler(app app.App, router fiber.Router) *HealthHandler {
	return &HealthHandler{
		Handler: newHandler(app, router, "health.handler"),
		health:  app.Services.Health,
		board:   app.Services.Board,
		version: app.Config.GeneralVersion,
	}
}

func (h *HealthHandler) Register() {
	h.router.Get("/health", h.getHealth)
}

// getHealth answers from the last scheduled check and never probes backends inline.
func (h *HealthHandler) getHealth(c *fiber.Ctx) error {
	report := h.health.Report()

	return c.JSON(fiber.Map{
		"status":    "ok",
		"version":   h.version,
		"service":   "hkboard_dashboard",
		"badge":     report.Badge,
		"backends":  report.Backends,
		"checkedAt": report.CheckedAt,
		"loaded":    h.board.Loaded(),
	})
}
