package services

import (
	"context"
	"time"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

// LLMService defines the interface for interacting with an LLM API
type LLMService interface {
	// InitModel prepares the model on startup (pulling it if the backend needs that)
	InitModel(ctx context.Context, modelName string) error

	// GetChatResponse sends messages and returns the model's reply. When
	// schema is non-nil, providers with structured output are asked to
	// conform to it.
	GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (*chat.ChatResponse, error)

	// IsModelReady checks if the specified model is ready for use
	IsModelReady(ctx context.Context, modelName string) (bool, error)

	// ModelID returns the model the service talks to
	ModelID() string
}

// ResponseSchema is a JSON schema for structured output.
type ResponseSchema struct {
	Name       string
	Definition map[string]any
}

// ProviderConfig holds the settings shared by all providers.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

const (
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 60 * time.Second
)

func (c ProviderConfig) withDefaults(model string) ProviderConfig {
	if c.Model == "" {
		c.Model = model
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
