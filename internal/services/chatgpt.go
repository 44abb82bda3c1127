package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

const defaultChatGPTModel = "gpt-4o-mini"

// ChatGPTService implements LLMService for OpenAI and OpenAI-compatible
// endpoints.
type ChatGPTService struct {
	client   *openai.Client
	cfg      ProviderConfig
	provider string
	logger   *slog.Logger

	// Some compatible endpoints only understand the older max_tokens field.
	legacyMaxTokens bool
}

func NewChatGPTService(cfg ProviderConfig, logger *slog.Logger) (*ChatGPTService, error) {
	// Local compatible servers often take no key.
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return newOpenAICompatible("openai", cfg.withDefaults(defaultChatGPTModel), false, logger), nil
}

func newOpenAICompatible(provider string, cfg ProviderConfig, legacyMaxTokens bool, logger *slog.Logger) *ChatGPTService {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &ChatGPTService{
		client:          openai.NewClientWithConfig(config),
		cfg:             cfg,
		provider:        provider,
		logger:          logger,
		legacyMaxTokens: legacyMaxTokens,
	}
}

func (c *ChatGPTService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (c *ChatGPTService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return true, nil
}

func (c *ChatGPTService) ModelID() string {
	return c.cfg.Model
}

func (c *ChatGPTService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (resp *chat.ChatResponse, err error) {
	start := time.Now()
	defer func() { observeLLM(c.provider, c.cfg.Model, start, resp, err) }()

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    buildOpenAIMessages(messages),
		Temperature: float32(c.cfg.Temperature),
	}
	if c.legacyMaxTokens {
		req.MaxTokens = c.cfg.MaxTokens
	} else {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	}

	if schema != nil {
		schemaBytes, err := json.Marshal(schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: json.RawMessage(schemaBytes),
			},
		}
	}

	result, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(result.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no choices in %s response", c.provider)}
	}

	choice := result.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, &ErrMaxTokensExceeded{Content: choice.Message.Content}
	}
	if choice.Message.Content == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("empty content in %s response", c.provider)}
	}

	return &chat.ChatResponse{
		Message: choice.Message.Content,
		Model:   result.Model,
		Usage: chat.Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}, nil
}

func buildOpenAIMessages(msgs []chat.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case chat.ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case chat.ChatRoleAgent:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
