package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cleancity/cleancity/internal/api"
	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/cloudsql"
	"github.com/cleancity/cleancity/internal/config"
	"github.com/cleancity/cleancity/internal/database"
	"github.com/cleancity/cleancity/internal/logging"
	"github.com/cleancity/cleancity/internal/metrics"
	"github.com/cleancity/cleancity/internal/reports"
	"github.com/cleancity/cleancity/internal/server"
	"github.com/cleancity/cleancity/internal/storage"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting cleancity")

	// Connect to database (supports both local DATABASE_URL and Cloud SQL)
	dbURL, err := cloudsql.BuildDatabaseURL()
	if err != nil {
		logger.Error("failed to build database URL", "error", err)
		os.Exit(1)
	}

	// Log connection config (without sensitive data)
	connConfig := cloudsql.GetConnectionConfig()
	logger.Info("database configuration", "config", connConfig)

	logger.Info("connecting to database")
	dbCfg := database.DefaultConfig()
	dbCfg.URL = dbURL
	db, err := database.Connect(context.Background(), dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Run pending migrations (non-fatal to allow app to start even if migrations fail)
	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Create repositories
	reportRepo := database.NewPostgresReportRepository(db)
	userRepo := database.NewPostgresUserRepository(db)

	// Create classifier: Gradio space as primary, OpenAI vision as fallback
	var classifier classify.Classifier
	if cfg.Classifier.BaseURL != "" {
		gradio := classify.NewGradioClient(cfg.Classifier, logger)
		if fallback := classify.NewOpenAIClassifier(cfg.Classifier, logger); fallback != nil {
			logger.Info("classifier configured with OpenAI fallback")
			classifier = classify.WithFallback(gradio, fallback, logger)
		} else {
			logger.Info("classifier configured", "url", cfg.Classifier.BaseURL)
			classifier = gradio
		}
	} else {
		logger.Warn("CLASSIFIER_URL not set, using mock classifier")
		classifier = classify.NewMockClassifier()
	}

	// Create image store
	var store storage.Storage
	if cfg.Storage.BaseURL != "" {
		store = storage.NewHTTPStorage(cfg.Storage, logger)
	} else {
		logger.Warn("STORAGE_URL not set, using in-memory image store")
		store = storage.NewMemoryStorage()
	}

	// Create report lifecycle manager
	manager := reports.NewManager(reportRepo, userRepo, classifier, store, reports.ManagerConfig{
		UploadTimeout: cfg.Storage.UploadTimeout,
	}, logger)

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	mux.Handle("/metrics", collector.Handler())

	// Load auth configuration
	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	// Add REST API routes
	logger.Info("setting up REST API")
	var checker classify.HealthChecker
	if hc, ok := classifier.(classify.HealthChecker); ok {
		checker = hc
	}
	api.SetupRoutes(mux, db, manager, checker, collector, authConfig, logger)

	// Wrap with SPA middleware to serve frontend for non-API routes
	logger.Info("setting up static file server for web UI")
	handler := server.SPAMiddleware(collector.InstrumentHandler(mux), "./web/dist", "./web/dist/index.html")

	// Start server
	srv := server.New(cfg.Server, logger, handler)

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("cleancity started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
