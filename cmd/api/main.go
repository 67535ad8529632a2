package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"graphmind/internal/config"
	"graphmind/internal/di"
	"graphmind/internal/interfaces/http/rest"
	"graphmind/internal/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg, render.NopPainter{})
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	if _, err := container.Service.Refresh(ctx); err != nil {
		// The API still serves; POST /api/v1/graph/refresh retries.
		logger.Warn("Initial graph fetch failed", zap.Error(err))
	}

	router := rest.NewRouter(container.Service, cfg, container.Collector, logger)
	if err := rest.ListenAndServe(ctx, cfg.Server, router.Setup(), logger); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
	container.Service.Stop()
	logger.Info("Server stopped")
}
