// The sync-worker consumes transaction messages from AMQP and mirrors them
// into the Google Sheets backup. Without a configured spreadsheet it falls
// back to an in-memory store, which keeps local development honest.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"presupuesto/internal/amqp"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/sheets"
	gsheet "presupuesto/internal/sheets/google"
	"presupuesto/internal/sheets/memory"
	"presupuesto/internal/storage"
	"presupuesto/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting sync-worker")

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

	var (
		writer  sheets.TransactionWriter
		deleter sheets.TransactionDeleter
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer, deleter = client, client
		logger.Info("Google Sheets backup initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mem := memory.New()
		writer, deleter = mem, mem
		logger.Warn("No GOOGLE_SPREADSHEET_ID set, backing up to memory only")
	}

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer queue.Close()

	syncWorker := worker.NewSyncWorker(store, writer, deleter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- queue.Consume(ctx, syncWorker)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	}
	logger.Info("Sync-worker stopped")
}
