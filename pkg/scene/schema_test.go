package scene

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		raw          map[string]any
		wantWarnings bool
		contains     string
	}{
		{
			name: "generator output shape",
			raw: map[string]any{
				"sceneTitle":  "Serah Kamu",
				"situation":   "Milih makan malam.",
				"dialogue":    []any{map[string]any{"character": "Cewek", "text": "Serah kamu aja"}},
				"choices":     []any{map[string]any{"text": "A", "isCorrect": false}, map[string]any{"text": "B", "isCorrect": true}},
				"explanation": "Dia pengen kamu yang mutusin.",
			},
			wantWarnings: false,
		},
		{
			name: "scene shape",
			raw: map[string]any{
				"background":  "Milih makan malam.",
				"dialog":      []any{},
				"choices":     []any{map[string]any{"text": "A", "isCorrect": true}, map[string]any{"text": "B", "isCorrect": false}},
				"explanation": "Oke.",
			},
			wantWarnings: false,
		},
		{
			name: "two correct choices",
			raw: map[string]any{
				"situation":   "x",
				"dialogue":    []any{},
				"choices":     []any{map[string]any{"text": "A", "isCorrect": true}, map[string]any{"text": "B", "isCorrect": true}},
				"explanation": "x",
			},
			wantWarnings: true,
			contains:     "exactly one correct choice",
		},
		{
			name:         "missing everything",
			raw:          map[string]any{},
			wantWarnings: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := Validate(tt.raw)
			if tt.wantWarnings && len(warnings) == 0 {
				t.Fatal("Expected warnings, got none")
			}
			if !tt.wantWarnings && len(warnings) > 0 {
				t.Fatalf("Expected no warnings, got %v", warnings)
			}
			if tt.contains != "" && !strings.Contains(strings.Join(warnings, "\n"), tt.contains) {
				t.Errorf("Expected warnings to mention %q, got %v", tt.contains, warnings)
			}
		})
	}
}

func TestOutputSchema_RequiresGeneratorKeys(t *testing.T) {
	schema := OutputSchema()
	required, ok := schema["required"].([]any)
	if !ok {
		t.Fatal("Expected required list")
	}
	if len(required) != 5 {
		t.Errorf("Expected 5 required keys, got %d", len(required))
	}
}
