// Command network-api serves the latest stored sub-network run over HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/onurdenizs/sub-net/internal/api/handlers"
	"github.com/onurdenizs/sub-net/internal/config"
	"github.com/onurdenizs/sub-net/internal/db"
	"github.com/onurdenizs/sub-net/internal/logging"
)

func main() {
	// .env.local overrides .env for local development
	_ = godotenv.Overload(".env.local")
	cfg := config.Load()

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatalw("failed to initialize SQLite database", "path", cfg.DatabasePath, "error", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		logger.Fatalw("failed to ensure database schema", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", handlers.NewHealthHandler(database).GetHealth)
	handlers.NewNetworkHandler(database).Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infow("API server starting", "addr", srv.Addr, "db", cfg.DatabasePath)
		logger.Info("endpoints: GET /health, /api/runs/latest, /api/segments, /api/stations, /api/stations/{code}, /api/entry-nodes")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("graceful shutdown failed", "error", err)
	}
}
