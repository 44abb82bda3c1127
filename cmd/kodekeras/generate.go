package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/kode-keras/internal/config"
	"github.com/jwebster45206/kode-keras/internal/logger"
	"github.com/jwebster45206/kode-keras/internal/services"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one scene with the configured backend",
	Long: `Generates a single scene using LLM_PROVIDER and the rest of the environment
configuration, then prints the normalized scene as JSON.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("difficulty", "d", "easy", "Difficulty tier (easy, medium, hard)")
	generateCmd.Flags().IntP("step", "s", 1, "Round within the conversation")
	generateCmd.Flags().String("provider", "", "Override LLM_PROVIDER")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	// The override has to land before Load validates provider keys.
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		if err := os.Setenv("LLM_PROVIDER", p); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	diffName, _ := cmd.Flags().GetString("difficulty")
	step, _ := cmd.Flags().GetInt("step")
	req, err := buildRequest(diffName, step)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := services.NewBackend(ctx, cfg, logger.SetupTo(os.Stderr, cfg))
	if err != nil {
		return fmt.Errorf("failed to create scene backend: %w", err)
	}
	return generate(ctx, cmd.OutOrStdout(), backend.Generator, req)
}

func buildRequest(difficulty string, step int) (scene.Request, error) {
	d, err := scene.ParseDifficulty(difficulty)
	if err != nil {
		return scene.Request{}, err
	}
	if step < 1 || step > d.MaxSteps() {
		return scene.Request{}, fmt.Errorf("step must be between 1 and %d for %s", d.MaxSteps(), d)
	}
	return scene.Request{Difficulty: d, Step: step, MaxSteps: d.MaxSteps()}, nil
}

func generate(ctx context.Context, w io.Writer, gen conversation.Generator, req scene.Request) error {
	raw, err := gen.GenerateScene(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate scene: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(scene.Parse(raw))
}
