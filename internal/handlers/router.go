package handlers

import (
	"hkboard/internal/app"
	"hkboard/internal/handlers/middleware"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func newHandler(app app.App, router fiber.Router, file string) Handler {
	return Handler{
		middleware: app.Middleware,
		log:        logger.New("handlers").File(file),
		router:     router,
	}
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(middleware.TraceID())

	WebSocketHandler(router, app)

	api := router.Group("/api")
	NewHealthHandler(*app, api).Register()
	NewSessionHandler(*app, api).Register()
	NewRoomHandler(*app, api).Register()
	NewTaskHandler(*app, api).Register()
	NewMessageHandler(*app, api).Register()
	NewArchiveHandler(*app, api).Register()
	NewStorageHandler(*app, api).Register()
	NewAdminHandler(*app, api).Register()

	return nil
}
