package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/services"
	"hkboard/internal/types"
	"hkboard/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	Handler
	sessions *services.SessionService
}

func NewSessionHandler(app app.App, router fiber.Router) *SessionHandler {
	return &SessionHandler{
		Handler:  newHandler(app, router, "session.handler"),
		sessions: app.Services.Session,
	}
}

func (h *SessionHandler) Register() {
	session := h.router.Group("/session")
	session.Post("/", h.login)
	session.Get("/", h.middleware.RequireSession(), h.getSession)
	session.Delete("/", h.middleware.RequireSession(), h.logout)
}

func (h *SessionHandler) login(c *fiber.Ctx) error {
	log := h.log.Function("login")

	var req types.LoginRequest
	if problem := utils.BindRequest(c, &req); problem != nil {
		return c.Status(fiber.StatusBadRequest).JSON(problem)
	}

	session, err := h.sessions.Login(c.UserContext(), req.Identity)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) getSession(c *fiber.Ctx) error {
	session, _ := middleware.GetSession(c)
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) logout(c *fiber.Ctx) error {
	log := h.log.Function("logout")

	if err := h.sessions.Logout(c.UserContext(), middleware.SessionToken(c)); err != nil {
		return respondError(c, log, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
