// The reset-worker sweeps all auto-reset users on an interval, so a monthly
// reset happens on time even for users who never open the app that day.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"presupuesto/internal/cache"
	"presupuesto/internal/config"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting reset-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// The worker shares no process with the API server, so its cache only
	// exists to satisfy the service wiring; nothing reads it.
	reset := services.NewResetService(
		store,
		events.NewBus(),
		cache.New[core.MonthSummary](1, time.Minute),
		core.SystemClock{},
		cfg.Location(),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Reset sweep configured", "interval", cfg.ResetCheckInterval, "timezone", cfg.Timezone)

	sweep := func() {
		if err := reset.Sweep(ctx); err != nil {
			logger.Error("Reset sweep failed", log.FieldError, err)
		}
	}

	// Run once on startup, then on the interval.
	sweep()

	ticker := time.NewTicker(cfg.ResetCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reset-worker stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
