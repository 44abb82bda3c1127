package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/kode-keras/internal/config"
	"github.com/jwebster45206/kode-keras/internal/handlers"
	"github.com/jwebster45206/kode-keras/internal/logger"
	"github.com/jwebster45206/kode-keras/internal/services"
	"github.com/jwebster45206/kode-keras/internal/services/events"
	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Kode Keras API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"storage_backend", cfg.StorageBackend)

	backend, err := services.NewBackend(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to create scene backend", "error", err)
		os.Exit(1)
	}

	if backend.LLM != nil {
		// Initialize the model on startup
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		err := backend.LLM.InitModel(ctx, backend.LLM.ModelID())
		cancel()
		if err != nil {
			log.Error("Failed to initialize LLM model", "error", err, "model", backend.LLM.ModelID())
			os.Exit(1)
		}
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	store, redisClient, err := openStorage(storageCtx, cfg, log)
	storageCancel()
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	opts := []sessions.Option{
		sessions.WithStore(store),
		sessions.WithIdleTimeout(cfg.SessionIdleTimeout),
		sessions.WithLogger(log),
	}
	var subscriber handlers.Subscriber
	if redisClient != nil {
		opts = append(opts, sessions.WithLocker(storage.NewLocker(redisClient, cfg.RedisKeyPrefix, cfg.FetchLockTTL())))
		if cfg.EventsEnabled {
			broadcaster := events.NewBroadcaster(redisClient, log)
			opts = append(opts, sessions.WithObservers(broadcaster))
			subscriber = broadcaster
		}
	}
	manager := sessions.NewManager(backend.Generator, opts...)

	runCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go manager.Run(runCtx)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Manager:    manager,
			Generator:  backend.Generator,
			Storage:    store,
			Backend:    backend,
			Subscriber: subscriber,
			Logger:     log,
		}),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events stream stays open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")
	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// openStorage connects the configured progress store. The Redis client is
// returned for locking and events when the backend is redis.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, *redis.Client, error) {
	switch cfg.StorageBackend {
	case "redis":
		client, err := storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		rs := storage.NewRedisStorage(client, log,
			storage.WithKeyPrefix(cfg.RedisKeyPrefix),
			storage.WithTTL(cfg.ProgressTTL))
		if err := rs.WaitForConnection(ctx, 30, 2*time.Second); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return rs, client, nil
	case "sql":
		ss, err := storage.NewSQLStorage(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, nil, err
		}
		return ss, nil, nil
	case "memory":
		log.Warn("Using in-memory storage; progress is lost on restart")
		return storage.NewMemoryStorage(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
