package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/config"
	"scent-cart/internal/database"
	"scent-cart/internal/logger"
	"scent-cart/internal/server"
	"scent-cart/internal/storage"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, cancelNotifier context.CancelFunc, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()
	cancelNotifier()

	// Give in-flight requests 30 seconds to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting commerce session state API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	notifierCtx, cancelNotifier := context.WithCancel(context.Background())
	defer cancelNotifier()

	deps := server.Dependencies{Notifier: bus.Nop{}}

	switch cfg.Storage.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(notifierCtx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}

		notifier := bus.NewRedisNotifier(client, "scent-cart:changes", log)
		go func() {
			if err := notifier.Run(notifierCtx); err != nil && notifierCtx.Err() == nil {
				log.Error("Change notifier stopped", zap.Error(err))
			}
		}()

		deps.KV = storage.NewRedis(client)
		deps.Notifier = notifier
		deps.Redis = client

	case "postgres":
		db, err := database.New(cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := database.RunMigrations(db, "migrations", log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations completed successfully")

		deps.KV = storage.NewPostgres(db)
		deps.DB = db

	default:
		deps.KV = storage.NewMemory()
		log.Warn("Using in-memory storage; session state will not survive a restart")
	}

	srv := server.NewServer(cfg, log, deps)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, cancelNotifier, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
