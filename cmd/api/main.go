package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hkboard/internal/app"
	"hkboard/internal/server"

	logger "github.com/Bparsons0904/goLogger"
)

func gracefulShutdown(
	appServer *server.AppServer,
	done chan bool,
	log logger.Logger,
) {
	log = log.Function("gracefulShutdown")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")

	if err := appServer.Shutdown(5 * time.Second); err != nil {
		log.Er("Server forced to shutdown", err)
	}

	log.Info("Server exiting")
	done <- true
}

func main() {
	log := logger.New("main")

	api, err := app.NewAPI()
	if err != nil {
		log.Er("failed to create api app", err)
		os.Exit(1)
	}
	defer func() {
		if err := api.Close(); err != nil {
			log.Er("failed to close api app", err)
		}
	}()

	server, err := server.NewAPI(api)
	if err != nil {
		os.Exit(1)
	}

	done := make(chan bool, 1)

	go func() {
		if err := server.Listen(api.Config.APIServerPort); err != nil {
			log.Er("server stopped", err)
			os.Exit(1)
		}
	}()

	go gracefulShutdown(server, done, log)

	<-done
	log.Info("Graceful shutdown complete.")
}
