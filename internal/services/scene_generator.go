package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/kode-keras/pkg/prompts"
	"github.com/jwebster45206/kode-keras/pkg/scene"
	"github.com/jwebster45206/kode-keras/pkg/textfilter"
)

const sceneSchemaName = "kode_keras_scene"

// SceneGenerator produces scenes from an LLM. It satisfies
// conversation.Generator.
type SceneGenerator struct {
	llm          LLMService
	filter       *textfilter.ProfanityFilter
	historyLimit int
	logger       *slog.Logger
}

// SceneGeneratorOption configures a SceneGenerator.
type SceneGeneratorOption func(*SceneGenerator)

// WithContentFilter cleans every generated scene with f.
func WithContentFilter(f *textfilter.ProfanityFilter) SceneGeneratorOption {
	return func(g *SceneGenerator) { g.filter = f }
}

// WithPromptHistoryLimit caps the conversation lines sent back to the model.
func WithPromptHistoryLimit(n int) SceneGeneratorOption {
	return func(g *SceneGenerator) { g.historyLimit = n }
}

// NewSceneGenerator creates a generator backed by llm.
func NewSceneGenerator(llm LLMService, logger *slog.Logger, opts ...SceneGeneratorOption) *SceneGenerator {
	g := &SceneGenerator{
		llm:          llm,
		historyLimit: 40,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateScene asks the model for one round and returns the normalized
// scene as JSON.
func (g *SceneGenerator) GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	out, err := g.generate(ctx, req)
	observeScene("llm", err)
	return out, err
}

func (g *SceneGenerator) generate(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	messages, err := prompts.BuildMessages(req, g.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build scene prompt: %w", err)
	}

	resp, err := g.llm.GetChatResponse(ctx, messages, &ResponseSchema{
		Name:       sceneSchemaName,
		Definition: scene.OutputSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate scene: %w", err)
	}

	// An undecodable reply still becomes a playable fallback scene.
	raw, err := scene.Decode([]byte(resp.Message))
	if err != nil {
		sceneSchemaWarningsTotal.Inc()
		g.logger.Warn("Model reply held no scene object",
			"model", resp.Model,
			"error", err)
	} else if warnings := scene.Validate(raw); len(warnings) > 0 {
		sceneSchemaWarningsTotal.Inc()
		g.logger.Warn("Generated scene does not match schema",
			"model", resp.Model,
			"difficulty", req.Difficulty,
			"step", req.Step,
			"warnings", warnings)
	}

	s := scene.Normalize(raw)
	if g.filter != nil {
		g.filter.FilterScene(&s)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene: %w", err)
	}

	g.logger.Debug("Scene generated",
		"scene_id", s.ID,
		"title", s.SceneTitle,
		"difficulty", req.Difficulty,
		"step", req.Step,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return data, nil
}
