package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"orderflow-backend/pkg/container"
	"orderflow-backend/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	// Container carries the same dependency graph as the API, the
	// worker just drives it from tasks instead of HTTP.
	c, err := container.NewContainer()
	if err != nil {
		log.Fatalf("[Container] Failed to initialize: %v", err)
	}
	defer c.Cleanup()

	logger.Init(c.Config.App.Environment)

	// Job handlers
	handlers := initializeHandlers(c)

	// Asynq consumer
	srv := setupAsynqServer(c, handlers)

	// Cron scheduler for the recurring lifecycle jobs
	scheduler := setupScheduler(c)

	// Liveness endpoint for the orchestrator
	go startHealthCheckServer()

	waitForShutdown(srv, scheduler)
}

func waitForShutdown(srv *asynqServer, scheduler *asynqScheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("[Shutdown] Gracefully stopping...")
	scheduler.Shutdown()
	srv.Shutdown()
	log.Println("[Shutdown] ✓ Stopped")
}
