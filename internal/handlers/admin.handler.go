package handlers

import (
	"fmt"
	"time"

	"hkboard/internal/app"
	adminController "hkboard/internal/controllers/admin"
	"hkboard/internal/handlers/middleware"
	"hkboard/internal/types"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Handler
	adminController adminController.AdminControllerInterface
}

func NewAdminHandler(app app.App, router fiber.Router) *AdminHandler {
	return &AdminHandler{
		Handler:         newHandler(app, router, "admin.handler"),
		adminController: app.AdminController,
	}
}

func (h *AdminHandler) Register() {
	admin := h.router.Group("/admin", h.middleware.RequireSession(), h.middleware.RequireAdmin())
	admin.Get("/export", h.export)
	admin.Post("/import", h.importDataset)
	admin.Post("/reset", h.reset)
	admin.Post("/undo-reset", h.undoReset)
}

// confirmed accepts ?confirm=true or a {"confirm": true} body.
func confirmed(c *fiber.Ctx) bool {
	if c.QueryBool("confirm") {
		return true
	}
	var req types.ConfirmRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil {
		return req.Confirm
	}
	return false
}

func (h *AdminHandler) export(c *fiber.Ctx) error {
	log := h.log.Function("export")
	session, _ := middleware.GetSession(c)

	dataset, err := h.adminController.Export(c.UserContext(), session)
	if err != nil {
		return respondError(c, log, err)
	}

	filename := fmt.Sprintf("hkboard-export-%s.json", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.JSON(dataset)
}

func (h *AdminHandler) importDataset(c *fiber.Ctx) error {
	log := h.log.Function("importDataset")
	session, _ := middleware.GetSession(c)

	response, err := h.adminController.Import(
		c.UserContext(),
		session,
		c.Body(),
		c.QueryBool("confirm"),
	)
	if err != nil {
		status := statusFor(err)
		if response == nil && status == fiber.StatusInternalServerError {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Invalid import document",
				"details": err.Error(),
			})
		}
		if response != nil {
			log.Er("import not fully persisted", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":       err.Error(),
				"collections": response.Collections,
				"results":     response.Results,
			})
		}
		return respondError(c, log, err)
	}

	return c.JSON(response)
}

func (h *AdminHandler) reset(c *fiber.Ctx) error {
	log := h.log.Function("reset")
	session, _ := middleware.GetSession(c)

	report, err := h.adminController.Reset(c.UserContext(), session, confirmed(c))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(report)
}

func (h *AdminHandler) undoReset(c *fiber.Ctx) error {
	log := h.log.Function("undoReset")
	session, _ := middleware.GetSession(c)

	report, err := h.adminController.UndoReset(c.UserContext(), session, confirmed(c))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(report)
}
