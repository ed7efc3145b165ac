package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumenhq/taskagent/cmd/gateway/internal/handlers"
	"github.com/lumenhq/taskagent/cmd/gateway/internal/middleware"
	"github.com/lumenhq/taskagent/internal/agent"
	"github.com/lumenhq/taskagent/internal/auth"
	"github.com/lumenhq/taskagent/internal/config"
	"github.com/lumenhq/taskagent/internal/conversation"
	"github.com/lumenhq/taskagent/internal/db"
	"github.com/lumenhq/taskagent/internal/llm"
	"github.com/lumenhq/taskagent/internal/llm/openai"
	"github.com/lumenhq/taskagent/internal/tasks"
	"github.com/lumenhq/taskagent/internal/tools"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	dbClient, err := db.NewClient(&db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxConnections:  cfg.Database.MaxConnections,
		IdleConnections: cfg.Database.IdleConnections,
		MaxLifetime:     cfg.Database.MaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbClient.Close()

	ctx := context.Background()
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Fatal("Failed to initialize schema", zap.Error(err))
	}
	pgDB := dbClient.DB()

	// Initialize Redis for the history cache and rate limiting
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Auth
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	authService := auth.NewService(pgDB, logger, jwtManager)
	authMiddleware := auth.NewMiddleware(authService, jwtManager, logger).Handler

	// Domain wiring
	taskRepo := tasks.NewRepository(pgDB, logger)
	registry := tools.NewRegistry(taskRepo, jwtManager, logger)

	historyCache := conversation.NewHistoryCache(redisClient, 0, logger)
	store := conversation.NewStore(pgDB, historyCache, logger)

	// The model client is optional: without an API key the orchestrator
	// answers every message through the keyword fallback.
	var model llm.Client
	if cfg.ModelEnabled() {
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.Model.APIKey,
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Model,
			Timeout: cfg.Model.Timeout,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create model client", zap.Error(err))
		}
		model = client
		logger.Info("Model capability enabled", zap.String("model", cfg.Model.Model))
	} else {
		logger.Info("No model API key configured, running in fallback mode")
	}

	orchestrator := agent.New(model, registry, logger)

	// Handlers
	chatHandler := handlers.NewChatHandler(orchestrator, store, cfg.Chat.HistoryWindow, logger)
	authHandler := handlers.NewAuthHandler(authService, logger)
	tasksHandler := handlers.NewTasksHandler(taskRepo, logger)
	healthHandler := handlers.NewHealthHandler(pgDB, logger)

	// Middlewares
	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.Chat.RequestsPerMinute, logger).Middleware
	tracing := middleware.Tracing

	protected := func(h http.HandlerFunc) http.Handler {
		return tracing(authMiddleware(rateLimiter(h)))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return tracing(h)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /health", public(healthHandler.Health))
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("POST /api/v1/auth/register", public(authHandler.Register))
	mux.Handle("POST /api/v1/auth/login", public(authHandler.Login))

	mux.Handle("POST /api/v1/chat", protected(chatHandler.Chat))

	mux.Handle("GET /api/v1/tasks", protected(tasksHandler.List))
	mux.Handle("POST /api/v1/tasks", protected(tasksHandler.Create))
	mux.Handle("GET /api/v1/tasks/{id}", protected(tasksHandler.Get))
	mux.Handle("PATCH /api/v1/tasks/{id}", protected(tasksHandler.Update))
	mux.Handle("PATCH /api/v1/tasks/{id}/toggle", protected(tasksHandler.Toggle))
	mux.Handle("DELETE /api/v1/tasks/{id}", protected(tasksHandler.Delete))

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Gateway starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start gateway", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Gateway shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway forced to shutdown", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}
