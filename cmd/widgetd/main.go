package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/receptly/chat-widget/internal/api"
	"github.com/receptly/chat-widget/internal/config"
	"github.com/receptly/chat-widget/internal/domain"
	"github.com/receptly/chat-widget/internal/logging"
	"github.com/receptly/chat-widget/internal/storage/memory"
	"github.com/receptly/chat-widget/internal/storage/mongo"
	"github.com/receptly/chat-widget/internal/storage/redis"
	"github.com/receptly/chat-widget/internal/storage/sqlite"
	"github.com/receptly/chat-widget/internal/transport"
	"github.com/receptly/chat-widget/internal/widget"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	if err := logging.Setup(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Str("agent", cfg.Agent.BaseURL).
		Msg("Starting chat widget server")

	// Initialize session store
	store, closeStore, err := newSessionStore(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	defer closeStore()

	// Initialize agent transport and widget registry
	agent := transport.NewClient(cfg.Agent.BaseURL, cfg.Agent.Timeout)
	registry := widget.NewRegistry(store, agent)

	// Initialize router
	router := api.NewRouter(cfg, registry)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newSessionStore builds the configured session store backend together
// with its cleanup function.
func newSessionStore(ctx context.Context, cfg config.StorageConfig) (domain.SessionStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewStore(), func() {}, nil

	case "sqlite":
		store, err := sqlite.NewStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, closeQuietly(store.Close), nil

	case "redis":
		store, err := redis.NewStore(ctx, redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, closeQuietly(store.Close), nil

	case "mongo":
		store, err := mongo.NewStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		return store, closeQuietly(store.Close), nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func closeQuietly(close func() error) func() {
	return func() {
		if err := close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session store")
		}
	}
}
