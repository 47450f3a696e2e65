package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// RequireAdmin runs after RequireSession.
func (m *Middleware) RequireAdmin() fiber.Handler {
	log := m.log.Function("RequireAdmin")

	return func(c *fiber.Ctx) error {
		session, ok := GetSession(c)
		if !ok {
			log.Info("session not found in context")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session required",
			})
		}

		if !session.IsAdmin() {
			log.Info("session is not admin", "identity", session.Identity)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		}

		return c.Next()
	}
}
