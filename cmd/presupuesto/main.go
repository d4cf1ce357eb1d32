package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cache"
	"presupuesto/internal/config"
	"presupuesto/internal/core"
	"presupuesto/internal/events"
	"presupuesto/internal/feeds"
	apphttp "presupuesto/internal/http"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

const (
	summaryCacheSize = 512
	summaryCacheTTL  = 5 * time.Minute
	janitorInterval  = time.Minute
	shutdownTimeout  = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting presupuesto server")

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

	// AMQP is optional: without it transactions stay local and the sheets
	// backup never happens.
	var queue *amqp.Client
	if cfg.AMQPURL != "" {
		queue, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without backup sync", log.FieldError, err)
			queue = nil
		} else {
			defer queue.Close()
			logger.Info("AMQP client initialized, transactions will sync via sync-worker")
		}
	} else {
		logger.Info("AMQP disabled, transactions will not be backed up")
	}

	clock := core.SystemClock{}
	loc := cfg.Location()
	bus := events.NewBus()

	summaryCache := cache.New[core.MonthSummary](summaryCacheSize, summaryCacheTTL)
	janitor := cache.NewJanitor()
	janitor.Register(summaryCache)
	janitor.Start(janitorInterval)
	defer janitor.Stop()

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		JWTSecret:   cfg.JWTSecret,
		Ledger:      services.NewLedgerService(store, queue, bus, summaryCache, clock, loc, logger),
		Config:      services.NewConfigService(store, bus, summaryCache, logger),
		Goals:       services.NewGoalService(store, bus, clock, logger),
		Reset:       services.NewResetService(store, bus, summaryCache, clock, loc, logger),
		Bus:         bus,
		Inflation:   feeds.NewInflationClient(cfg.InflationFeedURL, cfg.FeedTimeout, clock, logger),
		Investments: feeds.NewInvestmentsClient(cfg.InvestmentsPageURL, cfg.FeedTimeout, clock, logger),
		Clock:       clock,
		Location:    loc,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
