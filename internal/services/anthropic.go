package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// anthropicModels maps friendly names to Anthropic model IDs.
var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

// AnthropicService implements LLMService for Anthropic Claude
type AnthropicService struct {
	client *anthropic.Client
	cfg    ProviderConfig
	logger *slog.Logger
}

func NewAnthropicService(cfg ProviderConfig, logger *slog.Logger) (*AnthropicService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	cfg = cfg.withDefaults(defaultAnthropicModel)
	cfg.Model = resolveModel(cfg.Model, anthropicModels)

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicService{client: &client, cfg: cfg, logger: logger}, nil
}

func (a *AnthropicService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (a *AnthropicService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return true, nil
}

func (a *AnthropicService) ModelID() string {
	return a.cfg.Model
}

// GetChatResponse sends the conversation to Claude. Claude has no schema
// option here; the prompt already demands JSON.
func (a *AnthropicService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (resp *chat.ChatResponse, err error) {
	start := time.Now()
	defer func() { observeLLM("anthropic", a.cfg.Model, start, resp, err) }()

	system, rest := chat.SplitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Messages:    buildAnthropicMessages(rest),
		Temperature: anthropic.Float(a.cfg.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: text}
	}
	if text == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no text content in Anthropic response")}
	}

	return &chat.ChatResponse{
		Message: text,
		Model:   string(msg.Model),
		Usage: chat.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func buildAnthropicMessages(msgs []chat.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if m.Role == chat.ChatRoleAgent {
			role = anthropic.MessageParamRoleAssistant
		}
		out[i] = anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(m.Content),
			},
		}
	}
	return out
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.StatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
