package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hkboard/config"
	"hkboard/internal/app"
	"hkboard/internal/jobs"
	"hkboard/internal/server"

	logger "github.com/Bparsons0904/goLogger"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogFile mirrors the default slog output into a rotating file.
func setupLogFile(config config.Config) io.Closer {
	if config.LogFile == "" {
		return nil
	}

	fileWriter := &lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	writer := io.MultiWriter(os.Stdout, fileWriter)
	slog.SetDefault(slog.New(slog.NewJSONHandler(writer, nil)))
	return fileWriter
}

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
	ctx := context.Background()

	app, err := app.New(ctx)
	if err != nil {
		log.Er("failed to create app", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Er("failed to close app", err)
		}
	}()

	if logFile := setupLogFile(app.Config); logFile != nil {
		defer func() {
			if err := logFile.Close(); err != nil {
				log.Er("failed to close log file", err)
			}
		}()
	}

	svc := app.Services
	if err := svc.Board.Load(ctx); err != nil {
		log.Warn("Board loaded without every backend", "error", err)
	}
	svc.Health.Check(ctx)

	if _, err := svc.DailyReset.CheckAndRun(ctx); err != nil {
		log.Warn("Daily reset check failed at startup", "error", err)
	}

	if err := jobs.RegisterAllJobs(svc.Scheduler, app.Config, svc); err != nil {
		log.Er("failed to register jobs", err)
		os.Exit(1)
	}
	if err := svc.Scheduler.Start(ctx); err != nil {
		log.Er("failed to start scheduler", err)
		os.Exit(1)
	}

	server, err := server.New(app)
	if err != nil {
		os.Exit(1)
	}

	done := make(chan bool, 1)

	go func() {
		if err := server.Listen(app.Config.ServerPort); err != nil {
			log.Er("server stopped", err)
			os.Exit(1)
		}
	}()

	go gracefulShutdown(server, done, log)

	<-done
	log.Info("Graceful shutdown complete.")
}
