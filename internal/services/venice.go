package services

import (
	"fmt"
	"log/slog"
)

const (
	veniceBaseURL      = "https://api.venice.ai/api/v1"
	defaultVeniceModel = "llama-3.3-70b"
)

// NewVeniceService talks to Venice AI through its OpenAI-compatible endpoint.
func NewVeniceService(cfg ProviderConfig, logger *slog.Logger) (*ChatGPTService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("venice API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = veniceBaseURL
	}
	return newOpenAICompatible("venice", cfg.withDefaults(defaultVeniceModel), true, logger), nil
}
