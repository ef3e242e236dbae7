package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/config"
	"github.com/joho/godotenv"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize logging
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting amoCRM leads service",
		logging.Field{Key: "version", Value: Version},
		logging.Field{Key: "port", Value: cfg.Port},
	)

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Initialize application
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	app.Authorize(context.Background())

	// Start server
	srv := app.RunServer()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}
	logging.Info("Server listening", logging.Field{Key: "port", Value: cfg.Port})

	// Wait for interrupt signal or a serve failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-srv.Errors():
		if err != nil {
			logging.Error("Server stopped unexpectedly", err)
			return err
		}
	}

	logging.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
