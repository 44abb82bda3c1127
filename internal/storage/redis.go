package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// RedisStorage stores progress as JSON strings under <prefix>:progress:<key>.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStorage) { r.prefix = strings.TrimSuffix(prefix, ":") }
}

// WithTTL expires saved progress after ttl. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) { r.ttl = ttl }
}

// NewRedisClient accepts host:port or a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// NewRedisStorage creates a new Redis storage instance on an existing client.
func NewRedisStorage(client *redis.Client, logger *slog.Logger, opts ...RedisOption) *RedisStorage {
	r := &RedisStorage{
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client exposes the underlying client for pub/sub and locking.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) progressKey(key string) string {
	if r.prefix == "" {
		return "progress:" + key
	}
	return r.prefix + ":progress:" + key
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := range maxRetries {
		err := r.Ping(ctx)
		if err == nil {
			r.logger.Info("Redis connection established")
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Progress operations

func (r *RedisStorage) SaveProgress(ctx context.Context, key string, p *conversation.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		r.logger.Error("Failed to marshal progress", "key", key, "error", err)
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if err := r.client.Set(ctx, r.progressKey(key), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save progress", "key", key, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadProgress(ctx context.Context, key string) (*conversation.Progress, error) {
	data, err := r.client.Get(ctx, r.progressKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Progress not found", "key", key)
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load progress", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p conversation.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Error("Failed to unmarshal progress", "key", key, "error", err)
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *RedisStorage) DeleteProgress(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.progressKey(key)).Err(); err != nil {
		r.logger.Error("Failed to delete progress", "key", key, "error", err)
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
