package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tasktracker/internal/config"
	"tasktracker/internal/events"
	"tasktracker/internal/handler"
	"tasktracker/internal/idem"
	"tasktracker/internal/repo"
	"tasktracker/internal/service"
	"tasktracker/internal/worker"
	"tasktracker/pkg/metrics"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	ttl := time.Duration(cfg.API.IdemKeyTTLHrs) * time.Hour

	pool, err := pgxpool.New(context.Background(), cfg.DB.URL)
	if err != nil {
		logger.Fatal("Failed to connect to the database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping the database", zap.Error(err))
	}
	logger.Info("Connected to the database")

	taskRepo := repo.NewTaskRepo(pool)

	var idemStore idem.Store = idem.NewPostgresStore(pool)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		idemStore = idem.NewRedisStore(rdb, ttl)
		logger.Info("Using redis idempotency store", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher *events.Publisher
	if cfg.MQ.URL != "" {
		publisher, err = events.NewPublisher(cfg.MQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to the message broker", zap.Error(err))
		}
		defer publisher.Close()
		logger.Info("Task events enabled")
	}

	taskService := service.NewTaskService(taskRepo, idemStore, publisher)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	janitor := worker.NewJanitor(pool, logger, ttl, cfg.API.JanitorWorkers)
	janitor.Start(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Group(taskHandler.Routes)

	srv := http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down...")
	janitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
