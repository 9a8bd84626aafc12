package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"scent-cart/internal/bus"
	"scent-cart/internal/checkout"
	"scent-cart/internal/config"
	"scent-cart/internal/database"
	custommiddleware "scent-cart/internal/middleware"
	"scent-cart/internal/pricing"
	"scent-cart/internal/storage"
	"scent-cart/internal/transport"
)

// Dependencies are the substrate-level resources the server is assembled
// from. Redis and DB are optional; they are closed with the server when
// present.
type Dependencies struct {
	KV       storage.KV
	Notifier bus.Notifier
	Redis    *redis.Client
	DB       *sql.DB
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

// NewServer assembles the HTTP API around the session state store.
func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))
	if deps.Redis != nil && cfg.RateLimit.RequestsPerMinute > 0 {
		router.Use(custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
			Window:            time.Minute,
			KeyPrefix:         "ratelimit",
		}, logger))
	}
	router.Use(custommiddleware.OptionalAuth(cfg.JWT.Secret, logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"status": "ok"}
		if err := deps.KV.Ping(r.Context()); err != nil {
			payload["status"] = "degraded"
			payload["storage"] = err.Error()
		}
		if deps.DB != nil {
			payload["database"] = database.Health(deps.DB)
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, payload)
	})

	sessions := transport.NewSessions(deps.KV, deps.Notifier, logger)
	backend := pricing.NewClient(
		cfg.Backend.BaseURL,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
		logger,
	)
	checkoutSvc := checkout.NewService(backend, decimal.NewFromFloat(cfg.Order.MinAmount), logger)

	cartHandler := transport.NewCartHandler(sessions, checkoutSvc, logger)
	favoritesHandler := transport.NewFavoritesHandler(sessions, logger)
	comparisonHandler := transport.NewComparisonHandler(sessions, logger)
	orderHandler := transport.NewOrderHandler(sessions, checkoutSvc, logger)

	router.Group(func(r chi.Router) {
		r.Use(sessions.Middleware())
		cartHandler.RegisterRoutes(r)
		favoritesHandler.RegisterRoutes(r)
		comparisonHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
	})

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// Close releases the substrate resources.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
