package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/kode-keras/internal/services"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

const validScene = `{
  "sceneTitle": "Serah Kamu Aja",
  "situation": "Bingung makan di mana.",
  "dialogue": [{"character": "Cewek", "text": "Serah kamu aja..."}],
  "choices": [
    {"text": "Nasi padang", "isCorrect": false},
    {"text": "Kasih tiga opsi", "isCorrect": true}
  ],
  "explanation": "Ajak mikir bareng."
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		content      string
		expectErr    bool
		expectOutput []string
	}{
		{
			name:         "valid scene",
			file:         "scene.json",
			content:      validScene,
			expectOutput: []string{"scene.json: ok", "0 warning(s)"},
		},
		{
			name:         "fenced model reply",
			file:         "reply.txt",
			content:      "Berikut scenenya:\n```json\n" + validScene + "\n```",
			expectOutput: []string{"reply.txt: ok"},
		},
		{
			name:         "two correct choices warns",
			file:         "double.json",
			content:      `{"situation":"x","dialogue":[],"explanation":"y","choices":[{"text":"a","isCorrect":true},{"text":"b","isCorrect":true}]}`,
			expectOutput: []string{"expected exactly one correct choice, found 2"},
		},
		{
			name:      "not json",
			file:      "garbage.json",
			content:   "no braces here",
			expectErr: true,
		},
		{
			name:         "scene pack",
			file:         "pack.yaml",
			content:      "name: test\nscenes:\n  - id: one\n    title: Satu\n    situation: Di kafe.\n    dialogue:\n      - character: Cewek\n        text: Hmm.\n    choices:\n      - text: A\n        isCorrect: true\n      - text: B\n        isCorrect: false\n    explanation: Karena.\n",
			expectOutput: []string{"pack.yaml#one: ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			var out bytes.Buffer
			err := runValidate(&out, []string{path}, false)
			if tt.expectErr && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Fatalf("Unexpected error: %v\n%s", err, out.String())
			}
			for _, want := range tt.expectOutput {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runValidate(&out, []string{filepath.Join(t.TempDir(), "nope.json")}, false)
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestRunValidate_PrintsNormalizedScene(t *testing.T) {
	path := writeFile(t, "scene.json", validScene)
	var out bytes.Buffer
	if err := runValidate(&out, []string{path}, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"label": "B"`) {
		t.Errorf("Expected labelled choices in output, got:\n%s", out.String())
	}
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		difficulty string
		step       int
		expectErr  bool
		maxSteps   int
	}{
		{"easy", 1, false, 1},
		{"Medium", 3, false, 3},
		{"hard", 6, true, 0},
		{"easy", 0, true, 0},
		{"legendary", 1, true, 0},
	}
	for _, tt := range tests {
		req, err := buildRequest(tt.difficulty, tt.step)
		if tt.expectErr {
			if err == nil {
				t.Errorf("%s/%d: expected error", tt.difficulty, tt.step)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s/%d: unexpected error %v", tt.difficulty, tt.step, err)
			continue
		}
		if req.MaxSteps != tt.maxSteps {
			t.Errorf("Expected maxSteps %d, got %d", tt.maxSteps, req.MaxSteps)
		}
	}
}

func TestGenerate_FixturePack(t *testing.T) {
	pack, err := services.LoadScenePack("")
	if err != nil {
		t.Fatalf("Failed to load default pack: %v", err)
	}
	req, err := buildRequest("easy", 1)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := generate(context.Background(), &out, services.NewFixtureGenerator(pack), req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var sc scene.Scene
	if err := json.Unmarshal(out.Bytes(), &sc); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if sc.SceneTitle == "" || len(sc.Choices) < 2 {
		t.Errorf("Expected a playable scene, got %+v", sc)
	}
}

func TestPrintTiers(t *testing.T) {
	var out bytes.Buffer
	if err := printTiers(&out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"easy", "medium", "hard", "DIFFICULTY"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}
}
