package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported values for LLM_PROVIDER.
var Providers = []string{"gemini", "anthropic", "openai", "venice", "ollama", "remote", "fixture", "mock"}

// Supported values for STORAGE_BACKEND and DATABASE_DRIVER.
var (
	StorageBackends = []string{"redis", "sql", "memory"}
	DatabaseDrivers = []string{"sqlite", "postgres", "mysql"}
)

type Config struct {
	// Server
	Port         string     `envconfig:"PORT" default:"8080"`
	Environment  string     `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelName string     `envconfig:"LOG_LEVEL" default:"info"`
	LogLevel     slog.Level `ignored:"true"`

	// LLM
	LLMProvider     string        `envconfig:"LLM_PROVIDER" default:"gemini"`
	ModelName       string        `envconfig:"MODEL_NAME"`
	GoogleAIAPIKey  string        `envconfig:"GOOGLE_AI_API_KEY"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"`
	VeniceAPIKey    string        `envconfig:"VENICE_API_KEY"`
	OllamaURL       string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	LLMTemperature  float64       `envconfig:"LLM_TEMPERATURE" default:"0.9"`
	LLMMaxTokens    int           `envconfig:"LLM_MAX_TOKENS" default:"2048"`
	LLMMaxAttempts  int           `envconfig:"LLM_MAX_ATTEMPTS" default:"3"`
	LLMTimeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Scene generation
	ScenePackPath   string `envconfig:"SCENE_PACK_PATH"`
	SceneServiceURL string `envconfig:"SCENE_SERVICE_URL"`
	ContentFilter   bool   `envconfig:"CONTENT_FILTER" default:"true"`

	// Storage
	StorageBackend string        `envconfig:"STORAGE_BACKEND" default:"redis"`
	RedisURL       string        `envconfig:"REDIS_URL" default:"localhost:6379"`
	RedisKeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"kodekeras"`
	ProgressTTL    time.Duration `envconfig:"PROGRESS_TTL" default:"720h"`
	DatabaseDriver string        `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseDSN    string        `envconfig:"DATABASE_DSN" default:"file:kodekeras.db"`

	// Sessions and events
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	EventsEnabled      bool          `envconfig:"EVENTS_ENABLED" default:"true"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected provider and backend are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if !slices.Contains(Providers, c.LLMProvider) {
		return fmt.Errorf("invalid LLM_PROVIDER %q (supported: %s)", c.LLMProvider, strings.Join(Providers, ", "))
	}

	switch c.LLMProvider {
	case "gemini":
		if c.GoogleAIAPIKey == "" {
			return fmt.Errorf("GOOGLE_AI_API_KEY is required when using gemini provider")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when using anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required when using openai provider")
		}
	case "venice":
		if c.VeniceAPIKey == "" {
			return fmt.Errorf("VENICE_API_KEY is required when using venice provider")
		}
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required when using ollama provider")
		}
	case "remote":
		if c.SceneServiceURL == "" {
			return fmt.Errorf("SCENE_SERVICE_URL is required when using remote provider")
		}
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %v", c.LLMTemperature)
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLMMaxTokens)
	}

	if !slices.Contains(StorageBackends, c.StorageBackend) {
		return fmt.Errorf("invalid STORAGE_BACKEND %q (supported: %s)", c.StorageBackend, strings.Join(StorageBackends, ", "))
	}
	if c.StorageBackend == "sql" {
		if !slices.Contains(DatabaseDrivers, c.DatabaseDriver) {
			return fmt.Errorf("invalid DATABASE_DRIVER %q (supported: %s)", c.DatabaseDriver, strings.Join(DatabaseDrivers, ", "))
		}
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when using sql storage")
		}
	}
	if c.EventsEnabled && c.StorageBackend != "redis" {
		// Events ride on Redis pub/sub.
		c.EventsEnabled = false
	}
	return nil
}

// backoffAllowance bounds one retry wait: the 10s backoff cap plus jitter.
const backoffAllowance = 15 * time.Second

// FetchLockTTL is how long a fetch lock must live to outlast the slowest
// generator call: every attempt timing out, the waits between them, and a
// minute of slack.
func (c *Config) FetchLockTTL() time.Duration {
	attempts := max(c.LLMMaxAttempts, 1)
	return time.Duration(attempts)*c.LLMTimeout +
		time.Duration(attempts-1)*backoffAllowance +
		time.Minute
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
