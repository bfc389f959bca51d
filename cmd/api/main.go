package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/scribe/internal/api"
	"github.com/timmy/scribe/internal/app"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
)

func main() {
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, app.Options{Notify: true})
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}

	// Setup router
	router := api.SetupRouter(cfg.Server, api.RouterDeps{
		Transcriptions: a.Transcriptions,
		Hub:            a.Hub,
		Metrics:        a.Metrics,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.With(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info(ctx, "Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	// Transcriptions get their own drain budget
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer drainCancel()
	if err := a.Close(drainCtx); err != nil {
		logger.Error("Pipeline did not drain cleanly: %v", err)
	}

	logger.Info("Server exited")
}
