package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"cadence/internal/auth"
	"cadence/internal/config"
	"cadence/internal/handler"
	"cadence/internal/middleware"
	"cadence/internal/repository/postgres"
	postgresChat "cadence/internal/repository/postgres/chat"
	serviceConversation "cadence/internal/service/chat/conversation"
	serviceSync "cadence/internal/service/chat/sync"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.Debug {
		logFile, err := config.SetupLogFile("logs", 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Sync policy (thresholds for the alignment engine)
	policy, err := config.LoadSyncPolicy(cfg.SyncPolicyPath)
	if err != nil {
		log.Fatalf("Failed to load sync policy: %v", err)
	}
	logger.Info("sync policy loaded",
		"min_match_ratio", policy.MinMatchRatio,
		"strict_roles", policy.StrictRoles,
	)

	// JWT verifier against the identity provider's JWKS endpoint
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	convRepo := postgresChat.NewConversationRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Services
	forker := serviceSync.NewForker(convRepo, messageRepo, logger)
	syncService := serviceSync.NewService(convRepo, messageRepo, txManager, forker, policy, logger)
	convService := serviceConversation.NewService(convRepo, messageRepo, logger)

	// Handlers
	syncHandler := handler.NewSyncHandler(syncService, convService, logger)
	convHandler := handler.NewConversationHandler(convService, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Sync routes
	mux.HandleFunc("POST /api/messages/append", syncHandler.Append)
	mux.HandleFunc("POST /api/conversations/{id}/messages/append", syncHandler.Append)
	mux.HandleFunc("POST /api/messages/{id}/edit", syncHandler.Edit)
	mux.HandleFunc("PUT /api/conversations/{id}/messages", syncHandler.LegacySync)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", convHandler.Create)
	mux.HandleFunc("GET /api/conversations", convHandler.List)
	mux.HandleFunc("GET /api/conversations/{id}", convHandler.Get)
	mux.HandleFunc("DELETE /api/conversations/{id}", convHandler.Delete)
	mux.HandleFunc("GET /api/conversations/{id}/messages", convHandler.ListMessages)

	// Authenticated routes get the auth middleware; health and metrics stay open
	var apiHandler http.Handler = mux
	apiHandler = middleware.Auth(jwtVerifier)(apiHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", healthHandler.Check)
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/api/", apiHandler)

	var h http.Handler = root
	h = middleware.Recovery(logger)(h)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
