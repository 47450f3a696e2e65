package middleware

import (
	"context"
	"errors"
	"strings"

	"hkboard/internal/models"
	"hkboard/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type SessionContextKey string

const (
	SessionKey      SessionContextKey = "session"
	SessionKeyFiber string            = "Session"
	SessionHeader   string            = "X-Session-Token"
)

// SessionToken reads the token from the Authorization bearer header or X-Session-Token.
func SessionToken(c *fiber.Ctx) string {
	if token := c.Get(SessionHeader); token != "" {
		return token
	}

	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (m *Middleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := logger.New("middleware").TraceFromContext(c.UserContext()).Function("RequireSession")

		token := SessionToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session token required",
			})
		}

		session, err := m.sessions.Get(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) {
				log.Warn("session lookup failed", "error", err)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session not found",
			})
		}

		c.Locals(SessionKeyFiber, session)
		ctx := context.WithValue(c.UserContext(), SessionKey, session)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

func GetSession(c *fiber.Ctx) (models.Session, bool) {
	session, ok := c.Locals(SessionKeyFiber).(models.Session)
	return session, ok
}
