package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/kode-keras/internal/services"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check scene files against the scene schema",
	Long: `Validates scene JSON files (raw model replies are accepted) and YAML scene
packs. Schema warnings are reported but do not fail the command; a file that
cannot be read or decoded does.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printScene, _ := cmd.Flags().GetBool("print")
		return runValidate(cmd.OutOrStdout(), args, printScene)
	},
}

func init() {
	validateCmd.Flags().BoolP("print", "p", true, "Print the normalized scene for each file")
	rootCmd.AddCommand(validateCmd)
}

type sceneValidator struct {
	out        io.Writer
	printScene bool
	warnings   int
}

func runValidate(w io.Writer, paths []string, printScene bool) error {
	v := &sceneValidator{out: w, printScene: printScene}

	var failed []string
	for _, path := range paths {
		if err := v.validateFile(path); err != nil {
			fmt.Fprintf(w, "%s: %v\n", path, err)
			failed = append(failed, path)
		}
	}

	fmt.Fprintf(w, "%d file(s) checked, %d warning(s)\n", len(paths), v.warnings)
	if len(failed) > 0 {
		return fmt.Errorf("validation failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (v *sceneValidator) validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		pack, err := services.ParseScenePack(data)
		if err != nil {
			return err
		}
		for _, ps := range pack.Scenes {
			raw, err := json.Marshal(ps)
			if err != nil {
				return fmt.Errorf("failed to encode scene %s: %w", ps.ID, err)
			}
			if err := v.validateScene(path+"#"+ps.ID, raw); err != nil {
				return err
			}
		}
		return nil
	default:
		return v.validateScene(path, data)
	}
}

func (v *sceneValidator) validateScene(name string, raw []byte) error {
	m, err := scene.Decode(raw)
	if err != nil {
		return err
	}

	warnings := scene.Validate(m)
	v.warnings += len(warnings)
	if len(warnings) == 0 {
		fmt.Fprintf(v.out, "%s: ok\n", name)
	}
	for _, msg := range warnings {
		fmt.Fprintf(v.out, "%s: warning: %s\n", name, msg)
	}

	if v.printScene {
		enc := json.NewEncoder(v.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(scene.Normalize(m)); err != nil {
			return fmt.Errorf("failed to print scene: %w", err)
		}
	}
	return nil
}
