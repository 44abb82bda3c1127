package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

const defaultGeminiModel = "gemini-2.0-flash"

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

// GeminiService implements LLMService for Google Gemini
type GeminiService struct {
	client *genai.Client
	cfg    ProviderConfig
	logger *slog.Logger
}

// NewGeminiService creates a Gemini client for the Gemini API backend.
func NewGeminiService(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg = cfg.withDefaults(defaultGeminiModel)
	cfg.Model = resolveModel(cfg.Model, geminiModels)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiService{client: client, cfg: cfg, logger: logger}, nil
}

func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (g *GeminiService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return true, nil
}

func (g *GeminiService) ModelID() string {
	return g.cfg.Model
}

func (g *GeminiService) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (resp *chat.ChatResponse, err error) {
	start := time.Now()
	defer func() { observeLLM("gemini", g.cfg.Model, start, resp, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	system, rest := chat.SplitSystem(messages)
	temp := float32(g.cfg.Temperature)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.cfg.MaxTokens),
		Temperature:     &temp,
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = buildGeminiSchema(schema.Definition)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, buildGeminiContents(rest), config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	text := result.Text()
	if len(result.Candidates) > 0 && result.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: text}
	}
	if text == "" {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no text in Gemini response")}
	}

	resp = &chat.ChatResponse{Message: text, Model: g.cfg.Model}
	if result.UsageMetadata != nil {
		resp.Usage = chat.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	g.logger.Debug("Gemini response received", "model", g.cfg.Model, "chars", len(text))
	return resp, nil
}

func buildGeminiContents(msgs []chat.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := genai.RoleUser
		if m.Role == chat.ChatRoleAgent {
			role = genai.RoleModel
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}

// buildGeminiSchema converts a JSON Schema definition map to a genai.Schema.
func buildGeminiSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := def["type"].(string); ok {
		schema.Type = mapGeminiType(t)
	}
	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if propDef, ok := v.(map[string]any); ok {
				schema.Properties[k] = buildGeminiSchema(propDef)
			}
		}
	}
	if req, ok := def["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = buildGeminiSchema(items)
	}
	return schema
}

func mapGeminiType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.Code, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
