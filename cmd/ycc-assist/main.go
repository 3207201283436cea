package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/punchagency/ycc-assist/internal/api"
	"github.com/punchagency/ycc-assist/internal/config"
	"github.com/punchagency/ycc-assist/internal/llm"
	"github.com/punchagency/ycc-assist/internal/logging"
	"github.com/punchagency/ycc-assist/internal/repository"
	"github.com/punchagency/ycc-assist/internal/service"
	"github.com/punchagency/ycc-assist/internal/vector"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database (chat history + catalog read model)
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	historyRepo := repository.NewHistoryRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// Vector index for the knowledge corpus
	index, err := vector.NewIndex(cfg.Vector.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize vector index", zap.Error(err))
	}

	// Model and embedding clients, constructed once and injected
	model, err := llm.NewChatModel(cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to initialize chat model", zap.Error(err))
	}
	embedder, err := llm.NewEmbedder(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedder", zap.Error(err))
	}

	indexer := service.NewContextIndexer(embedder, index, cfg.Vector.KnowledgePath, cfg.Vector.ChunkSize, logger)

	notifier := service.NewMailNotifier(cfg.SMTP, logger)
	defer notifier.Close()

	tools := service.NewToolDispatcher(catalogRepo, logger)

	orchestrator := service.NewOrchestrator(
		model,
		embedder,
		index,
		indexer,
		historyRepo,
		tools,
		notifier,
		service.Options{
			TopK:         cfg.Vector.TopK,
			HistoryLimit: cfg.Chat.HistoryLimit,
			Retention:    cfg.Retention(),
			SupportEmail: cfg.Chat.SupportEmail,
		},
		logger,
	)

	adminService := service.NewAdminService(indexer, index, historyRepo)

	// Build the context corpus up front; a failure here is not fatal,
	// the first chat turn (or an admin reindex) will retry.
	if err := indexer.IndexContext(context.Background(), false); err != nil {
		logger.Warn("Initial context indexing failed", zap.Error(err))
	}

	// Setup router
	router := api.SetupRouter(orchestrator, adminService, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		JWTSecret:    cfg.Auth.JWTSecret,
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // streaming turns hold the connection open
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting ycc-assist server", zap.String("address", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
