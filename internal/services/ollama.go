package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaService implements the LLMService interface for a self-hosted Ollama
type OllamaService struct {
	client *api.Client
	cfg    ProviderConfig
	logger *slog.Logger

	readyRetries int
	readyDelay   time.Duration
}

// NewOllamaService creates a new Ollama service instance
func NewOllamaService(cfg ProviderConfig, logger *slog.Logger) (*OllamaService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	cfg = cfg.withDefaults(defaultOllamaModel)

	// The native API lives at the root, not under the OpenAI-style /v1.
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama URL %q: %w", cfg.BaseURL, err)
	}

	return &OllamaService{
		client:       api.NewClient(parsed, &http.Client{Timeout: cfg.Timeout}),
		cfg:          cfg,
		logger:       logger,
		readyRetries: 5,
		readyDelay:   2 * time.Second,
	}, nil
}

func (s *OllamaService) ModelID() string {
	return s.cfg.Model
}

// InitModel waits for Ollama and pulls the model if it is missing
func (s *OllamaService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Info("Initializing LLM model", "model", modelName)

	if err := s.waitForOllamaReady(ctx); err != nil {
		return fmt.Errorf("ollama service is not ready: %w", err)
	}

	ready, err := s.IsModelReady(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}
	if ready {
		s.logger.Info("Model already available", "model", modelName)
		return nil
	}

	s.logger.Info("Model not found, pulling it", "model", modelName)
	stream := false
	err = s.client.Pull(ctx, &api.PullRequest{Model: modelName, Stream: &stream}, func(p api.ProgressResponse) error {
		s.logger.Debug("Pull progress", "model", modelName, "status", p.Status)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	s.logger.Info("Model pulled successfully", "model", modelName)
	return nil
}

// IsModelReady checks if the specified model is available locally
func (s *OllamaService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	list, err := s.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range list.Models {
		if m.Name == modelName || m.Model == modelName || strings.TrimSuffix(m.Name, ":latest") == modelName {
			return true, nil
		}
	}
	return false, nil
}

// GetChatResponse generates a chat response using the Ollama chat API
func (s *OllamaService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (resp *chat.ChatResponse, err error) {
	start := time.Now()
	defer func() { observeLLM("ollama", s.cfg.Model, start, resp, err) }()

	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    s.cfg.Model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": s.cfg.Temperature,
			"num_predict": s.cfg.MaxTokens,
		},
	}
	if schema != nil {
		format, err := json.Marshal(schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		req.Format = format
	}

	s.logger.Debug("Making Ollama chat request", "model", s.cfg.Model, "message_count", len(messages))

	var final api.ChatResponse
	err = s.client.Chat(ctx, req, func(r api.ChatResponse) error {
		final = r
		return nil
	})
	if err != nil {
		return nil, mapOllamaError(err)
	}
	if final.DoneReason == "length" {
		return nil, &ErrMaxTokensExceeded{Content: final.Message.Content}
	}
	if final.Message.Content == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("empty content in Ollama response")}
	}

	return &chat.ChatResponse{
		Message: final.Message.Content,
		Model:   final.Model,
		Usage: chat.Usage{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
		},
	}, nil
}

// waitForOllamaReady waits for Ollama service to be ready with retries
func (s *OllamaService) waitForOllamaReady(ctx context.Context) error {
	var lastErr error
	for i := 0; i < s.readyRetries; i++ {
		if lastErr = s.client.Heartbeat(ctx); lastErr == nil {
			s.logger.Info("Ollama service is ready")
			return nil
		}
		s.logger.Debug("Ollama not ready yet", "error", lastErr, "attempt", i+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.readyDelay):
		}
	}
	return fmt.Errorf("ollama not ready after %d attempts: %w", s.readyRetries, lastErr)
}

func mapOllamaError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusError(statusErr.StatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
