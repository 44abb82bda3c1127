package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/kode-keras/internal/config"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/textfilter"
)

// Backend is the configured scene source. LLM is nil for the fixture and
// remote providers.
type Backend struct {
	Provider  string
	Generator conversation.Generator
	LLM       LLMService
}

// Ready reports whether the backend can serve scenes.
func (b *Backend) Ready(ctx context.Context) (bool, error) {
	if b.LLM == nil {
		return true, nil
	}
	return b.LLM.IsModelReady(ctx, b.LLM.ModelID())
}

// NewLLMService creates the provider named by cfg.LLMProvider, wrapped in retries.
func NewLLMService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (LLMService, error) {
	pc := ProviderConfig{
		Model:       cfg.ModelName,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
	}

	var (
		svc LLMService
		err error
	)
	switch cfg.LLMProvider {
	case "gemini":
		pc.APIKey = cfg.GoogleAIAPIKey
		svc, err = NewGeminiService(ctx, pc, logger)
	case "anthropic":
		pc.APIKey = cfg.AnthropicAPIKey
		svc, err = NewAnthropicService(pc, logger)
	case "openai":
		pc.APIKey = cfg.OpenAIAPIKey
		pc.BaseURL = cfg.OpenAIBaseURL
		svc, err = NewChatGPTService(pc, logger)
	case "venice":
		pc.APIKey = cfg.VeniceAPIKey
		svc, err = NewVeniceService(pc, logger)
	case "ollama":
		pc.BaseURL = cfg.OllamaURL
		svc, err = NewOllamaService(pc, logger)
	case "mock":
		svc = NewMockLLMAPI()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s service: %w", cfg.LLMProvider, err)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.LLMMaxAttempts
	return WithRetry(svc, retry, logger), nil
}

// NewBackend builds the scene source for cfg.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.LLMProvider {
	case "fixture":
		pack, err := LoadScenePack(cfg.ScenePackPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Using scene pack", "name", pack.Name, "scenes", len(pack.Scenes))
		return &Backend{Provider: cfg.LLMProvider, Generator: NewFixtureGenerator(pack)}, nil
	case "remote":
		logger.Info("Using remote scene service", "url", cfg.SceneServiceURL)
		return &Backend{
			Provider:  cfg.LLMProvider,
			Generator: NewRemoteGenerator(cfg.SceneServiceURL, cfg.LLMTimeout),
		}, nil
	}

	llm, err := NewLLMService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var opts []SceneGeneratorOption
	if cfg.ContentFilter {
		opts = append(opts, WithContentFilter(textfilter.NewProfanityFilter()))
	}
	logger.Info("Using LLM provider", "provider", cfg.LLMProvider, "model", llm.ModelID())
	return &Backend{
		Provider:  cfg.LLMProvider,
		Generator: NewSceneGenerator(llm, logger, opts...),
		LLM:       llm,
	}, nil
}
