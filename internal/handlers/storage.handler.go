package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

type StorageHandler struct {
	Handler
	info *services.StorageInfoService
}

func NewStorageHandler(app app.App, router fiber.Router) *StorageHandler {
	return &StorageHandler{
		Handler: newHandler(app, router, "storage.handler"),
		info:    app.Services.StorageInfo,
	}
}

func (h *StorageHandler) Register() {
	storage := h.router.Group("/storage", h.middleware.RequireSession())
	storage.Get("/", h.getStorage)
	storage.Post("/retry", h.middleware.RequireAdmin(), h.retry)
}

func (h *StorageHandler) getStorage(c *fiber.Ctx) error {
	return c.JSON(h.info.Get(c.UserContext()))
}

// retry forgets cached reachability so the next write goes back to every backend.
func (h *StorageHandler) retry(c *fiber.Ctx) error {
	h.log.Function("retry").Info("Storage retry requested")
	return c.JSON(h.info.Retry(c.UserContext()))
}
