package server

import (
	"fmt"
	"time"

	"hkboard/internal/app"
	"hkboard/internal/handlers"
	"hkboard/internal/handlers/structured"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogs "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/helmet/v2"
)

type AppServer struct {
	FiberApp *fiber.App
	log      logger.Logger
}

func newFiber(name, version, environment, allowOrigins string, log logger.Logger) *fiber.App {
	config := fiber.Config{
		ServerHeader:             fmt.Sprintf("%s/%s", name, version),
		AppName:                  name,
		BodyLimit:                10 * 1024 * 1024,
		ReadBufferSize:           16384,
		WriteBufferSize:          16384,
		StreamRequestBody:        false,
		EnableSplittingOnParsers: true,
		EnableTrustedProxyCheck:  true,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
		IdleTimeout:              120 * time.Second,
		DisableStartupMessage:    true,
		EnablePrintRoutes:        false,
	}

	if environment == "development" {
		log.Info("Enabling development mode")
		config.DisableStartupMessage = false
		config.EnablePrintRoutes = true
	}

	server := fiber.New(config)

	if allowOrigins != "" {
		server.Use(cors.New(cors.Config{
			AllowOrigins:     allowOrigins,
			AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Session-Token, X-Trace-ID, Upgrade, Connection",
			AllowCredentials: true,
			MaxAge:           300,
			ExposeHeaders:    "Upgrade, X-Trace-ID, Content-Disposition",
		}))
	}

	server.Use(fiberLogs.New())
	server.Use(compress.New())

	server.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
		ContentSecurityPolicy:     "",
	}))

	return server
}

// New builds the dashboard server used by the tablets.
func New(app *app.App) (*AppServer, error) {
	log := logger.New("server").Function("New")
	log.Info("Initializing dashboard server")

	server := newFiber(
		"hkboard_dashboard",
		app.Config.GeneralVersion,
		app.Config.Environment,
		app.Config.CorsAllowOrigins,
		log,
	)

	if err := handlers.Router(server, app); err != nil {
		return &AppServer{}, log.Err("failed to initialize handlers", err)
	}

	return &AppServer{FiberApp: server, log: log}, nil
}

// NewAPI builds the structured store server.
func NewAPI(api *app.APIApp) (*AppServer, error) {
	log := logger.New("server").Function("NewAPI")
	log.Info("Initializing structured store server")

	server := newFiber(
		"hkboard_api",
		api.Config.GeneralVersion,
		api.Config.Environment,
		api.Config.CorsAllowOrigins,
		log,
	)

	if err := structured.Router(server, api); err != nil {
		return &AppServer{}, log.Err("failed to initialize structured handlers", err)
	}

	return &AppServer{FiberApp: server, log: log}, nil
}

func (s *AppServer) Listen(port int) error {
	log := s.log.Function("Listen")

	if port == 0 {
		return log.Error(
			"Fatal error: invalid port",
			"port", port,
		)
	}

	log.Info("Starting server", "port", port)
	return s.FiberApp.Listen(fmt.Sprintf(":%d", port))
}

func (s *AppServer) Shutdown(timeout time.Duration) error {
	return s.FiberApp.ShutdownWithTimeout(timeout)
}
