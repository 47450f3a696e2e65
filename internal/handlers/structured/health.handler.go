package structured

import (
	"context"
	"time"

	"hkboard/internal/types"

	"github.com/gofiber/fiber/v2"
)

const HEALTH_PING_TIMEOUT = 2 * time.Second

func (h Handler) registerHealth() {
	h.router.Get("/health", h.getHealth)
}

func (h Handler) getHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), HEALTH_PING_TIMEOUT)
	defer cancel()

	response := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "connected",
	}

	if err := h.api.Database.Ping(ctx); err != nil {
		h.log.Function("getHealth").Warn("database ping failed", "error", err)
		response.Status = "unhealthy"
		response.Database = "disconnected"
		response.Error = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}
