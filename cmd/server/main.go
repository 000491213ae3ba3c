package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pcristin/flashsale/internal/activity"
	"github.com/pcristin/flashsale/internal/admission"
	"github.com/pcristin/flashsale/internal/api"
	"github.com/pcristin/flashsale/internal/audit"
	"github.com/pcristin/flashsale/internal/config"
	"github.com/pcristin/flashsale/internal/consumer"
	"github.com/pcristin/flashsale/internal/database"
	"github.com/pcristin/flashsale/internal/handoff"
	"github.com/pcristin/flashsale/internal/inventory"
	myLogger "github.com/pcristin/flashsale/internal/logger"
	"github.com/pcristin/flashsale/internal/middleware"
	"github.com/pcristin/flashsale/internal/pipeline"
	"github.com/pcristin/flashsale/internal/reaper"
	"github.com/pcristin/flashsale/internal/risk"
	"github.com/pcristin/flashsale/internal/store"
)

func main() {
	// Initialize context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.NewConfig()
	cfg.ParseFlags()

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(cfg.GetLogLevel()) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// Set up slog with JSON handler and level
	opts := slog.HandlerOptions{
		Level: logLevel,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &opts))
	slog.SetDefault(logger)

	logger.Info("config | config initialized", "config", cfg)

	// Initialize the shared atomic store (C1)
	sharedStore := store.New(ctx, store.DefaultConfig(cfg.GetRedisURL()))
	if err := sharedStore.HealthCheck(ctx); err != nil {
		logger.Error("store | failed to connect to shared store", "error", err)
		os.Exit(1)
	}
	defer sharedStore.Close()

	// Initialize the relational store
	postgres, err := database.NewPostgresClient(ctx, cfg.GetPostgresURL())
	if err != nil {
		logger.Error("postgres | failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	if err := postgres.HealthCheck(); err != nil {
		logger.Error("postgres | failed to connect to Postgres", "error", err)
		os.Exit(1)
	}

	// Create schema
	if err := postgres.CreateTables(); err != nil {
		logger.Error("postgres | failed to create tables", "error", err)
		os.Exit(1)
	}

	// Audit ledger (C10): buffered, non-blocking writes into stock_log.
	ledger := audit.NewBufferedLedger(ctx, postgres.DB(), cfg.BatchSize, cfg.FlushInterval)
	defer ledger.Close()

	// Core pipeline components.
	inventoryEngine := inventory.New(sharedStore, ledger)
	admissionCtl := admission.New(sharedStore)
	riskSvc := risk.New(sharedStore, risk.Thresholds{Low: cfg.RiskThresholdLow, High: cfg.RiskThresholdHigh})
	activities := activity.New(postgres, inventoryEngine, cfg.UserPurchaseLimit)

	// Durable log producer (C2/C6).
	producer, err := handoff.NewProducer(handoff.Config{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.OrdersTopic,
		Partitions:     int32(cfg.PartitionCount),
		ProduceTimeout: 2 * time.Second,
	})
	if err != nil {
		logger.Error("handoff | failed to construct producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	bucket := admission.BucketParams{Capacity: cfg.BucketCapacity, Rate: cfg.RefillRate}
	orchestrator := pipeline.New(riskSvc, admissionCtl, activities, inventoryEngine, producer, bucket)

	// Order consumer (C7): one worker in the shared consumer group per
	// configured partition, mirroring the teacher's fixed worker-goroutine
	// count but scaled to the topic's partition layout instead of a single
	// global channel consumer.
	workers := make([]*consumer.Worker, 0, cfg.PartitionCount)
	for i := 0; i < cfg.PartitionCount; i++ {
		w, err := consumer.NewWorker(consumer.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.OrdersTopic,
			GroupID: cfg.ConsumerGroupID,
		}, postgres)
		if err != nil {
			logger.Error("consumer | failed to construct worker", "worker", i, "error", err)
			os.Exit(1)
		}
		workers = append(workers, w)
	}

	// Timeout reaper (C8).
	timeoutReaper := reaper.New(postgres, inventoryEngine, cfg.PayWindow, cfg.ReaperPeriod)

	// Initialize router
	router := chi.NewRouter()

	// Initialize handler
	handler := api.NewHandler(cfg, sharedStore, postgres, orchestrator, activities, inventoryEngine)

	// Start background workers
	wg := sync.WaitGroup{}

	for i, w := range workers {
		wg.Add(1)
		idx := i
		worker := w
		go func() {
			defer wg.Done()
			defer worker.Close()
			workerCtx := context.WithValue(ctx, myLogger.SourceKey, "order_consumer")
			logger.Info("consumer | starting worker", "worker", idx)
			worker.Run(workerCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		workerCtx := context.WithValue(ctx, myLogger.SourceKey, "reaper")
		timeoutReaper.Run(workerCtx)
	}()

	// Add routes
	router.Use(middleware.Chain(
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.RecoveryMiddleware,
		middleware.TimeoutMiddleware(10*time.Second),
	))

	router.Get("/health", handler.Health)
	router.Post("/purchase", handler.Purchase)
	router.Get("/orders/{id}", handler.OrderStatus)
	router.Post("/orders/{id}/confirm", handler.ConfirmOrder)
	router.Post("/orders/{id}/cancel", handler.CancelOrder)
	router.Post("/admin/activities", handler.CreateActivity)
	router.Post("/admin/activities/{id}/start", handler.StartActivity)
	router.Post("/admin/activities/{id}/end", handler.EndActivity)

	// Graceful shutdown
	// Initialize server
	server := &http.Server{
		Addr:           ":" + cfg.GetPort(),
		Handler:        router,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Channel for notification the main goroutine that connections are closed
	idleConnsClosed := make(chan struct{})

	// Channel to notify about server shutdown
	sigint := make(chan os.Signal, 1)

	// Register the channel to receive SIGINT, SIGTERM and SIGQUIT signals
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Start a separate goroutine to handle the signal
	go func() {
		<-sigint
		logger.Info("Shutting down server...")

		// Create channel to signal when shutdown is complete
		shutdownComplete := make(chan struct{})

		go func() {
			// Step 1
			cancel() // Stop workers

			// Step 2 - Wait for workers to finish
			wg.Wait()
			logger.Info("server | workers finished")

			// Step 3 - Shutdown server
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Error("server error | could not shutdown server", "error", err)
			}
			logger.Info("server | HTTP server shutdown completed")

			// Step 4 - Close shutdown complete channel
			close(shutdownComplete)
		}()

		select {
		case <-shutdownComplete:
			logger.Info("server | graceful shutdown completed")
		case <-time.After(30 * time.Second):
			logger.Warn("server | graceful shutdown timed out (30 seconds)")
			logger.Warn("server | WARNING: some operations may not been completed cleanly")
		}

		close(idleConnsClosed)
	}()

	// Start the server in a goroutine to allow graceful shutdown
	go func() {
		logger.Info("server | running on port", "port", cfg.GetPort())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error | could not listen on port", "port", cfg.GetPort(), "error", err)
			// Signal shutdown if server fails to start
			sigint <- syscall.SIGTERM
		}
	}()

	// Wait for idle connections to be closed
	<-idleConnsClosed

	logger.Info("server | server stopped")
}
