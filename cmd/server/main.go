package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pricelift/webhook-service/internal/api"
	"github.com/pricelift/webhook-service/internal/config"
	"github.com/pricelift/webhook-service/internal/engine"
	"github.com/pricelift/webhook-service/internal/plan"
	"github.com/pricelift/webhook-service/internal/ratelimit"
	"github.com/pricelift/webhook-service/internal/registry"
	"github.com/pricelift/webhook-service/internal/store"
	"github.com/pricelift/webhook-service/internal/worker"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	// Delivery pipeline
	queue := engine.NewQueue(redisStore.Client())
	breaker := engine.NewCircuitBreaker(redisStore.Client(), logger)
	fanout := engine.NewFanOutEngine(pgStore, queue, cfg.MaxAttempts, logger)
	deliverer := worker.NewDeliverer(pgStore, queue, breaker, cfg.DeliveryTimeout, logger)

	pollerCtx, stopPoller := context.WithCancel(ctx)

	pool := worker.NewPool(cfg.NumWorkers, deliverer, logger)
	pool.Start(ctx)

	poller := worker.NewPoller(queue, pool, logger)
	poller.Start(pollerCtx)

	limiter := ratelimit.NewRedisLimiter(redisStore.Client(), logger)
	reg := registry.New(pgStore, logger)

	// Setup router
	router := api.NewRouter(api.Deps{
		Store:     pgStore,
		Registry:  reg,
		FanOut:    fanout,
		Queue:     queue,
		Breaker:   breaker,
		Deliverer: deliverer,
		Limiter:   limiter,
		Plans:     plan.NewStaticChecker(),
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "workers", cfg.NumWorkers)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop claiming new jobs, wait for the poller to hand off anything
	// it already claimed, then let in-flight deliveries finish.
	stopPoller()
	poller.Stop()
	pool.Drain()

	logger.Info("server stopped")
}
