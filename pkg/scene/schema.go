package scene

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// OutputSchema is the JSON shape generators are asked to produce. Providers
// with structured output receive it directly.
func OutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sceneTitle": map[string]any{"type": "string", "description": "Judul singkat dari situasi"},
			"situation":  map[string]any{"type": "string", "description": "Deskripsi singkat latar situasi (max 2 kalimat)"},
			"dialogue": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"character": map[string]any{"type": "string"},
						"text":      map[string]any{"type": "string"},
					},
					"required": []any{"character", "text"},
				},
			},
			"choices": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":      map[string]any{"type": "string"},
						"label":     map[string]any{"type": "string"},
						"isCorrect": map[string]any{"type": "boolean"},
					},
					"required": []any{"text", "isCorrect"},
				},
			},
			"explanation": map[string]any{"type": "string"},
		},
		"required": []any{"sceneTitle", "situation", "dialogue", "choices", "explanation"},
	}
}

// payloadSchema accepts both the generator output keys and the Scene keys.
var payloadSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":          map[string]any{"type": "string"},
		"sceneTitle":  map[string]any{"type": "string"},
		"situation":   map[string]any{"type": "string"},
		"background":  map[string]any{"type": "string"},
		"explanation": map[string]any{"type": "string"},
		"dialogue":    map[string]any{"type": "array"},
		"dialog":      map[string]any{"type": "array"},
		"choices": map[string]any{
			"type":     "array",
			"minItems": 2,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"text", "isCorrect"},
				"properties": map[string]any{
					"text":      map[string]any{"type": "string"},
					"isCorrect": map[string]any{"type": "boolean"},
				},
			},
		},
	},
	"required": []any{"choices", "explanation"},
	"allOf": []any{
		map[string]any{"anyOf": []any{
			map[string]any{"required": []any{"situation"}},
			map[string]any{"required": []any{"background"}},
		}},
		map[string]any{"anyOf": []any{
			map[string]any{"required": []any{"dialogue"}},
			map[string]any{"required": []any{"dialog"}},
		}},
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a plain decoded JSON value.
		data, err := json.Marshal(payloadSchema)
		if err != nil {
			compileErr = fmt.Errorf("failed to marshal scene schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			compileErr = fmt.Errorf("failed to parse scene schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema://scene.json", doc); err != nil {
			compileErr = fmt.Errorf("failed to add scene schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("schema://scene.json")
	})
	return compiledSchema, compileErr
}

// Validate checks a decoded payload and returns human-readable warnings.
// Warnings never block a scene; normalization still repairs the payload.
func Validate(raw map[string]any) []string {
	var warnings []string

	sch, err := compiled()
	if err != nil {
		return []string{err.Error()}
	}
	if err := sch.Validate(toJSONValue(raw)); err != nil {
		warnings = append(warnings, err.Error())
	}

	correct := 0
	for _, item := range elements(raw["choices"]) {
		if m, ok := item.(map[string]any); ok {
			if b, ok := m["isCorrect"].(bool); ok && b {
				correct++
			}
		}
	}
	if correct != 1 {
		warnings = append(warnings, fmt.Sprintf("expected exactly one correct choice, found %d", correct))
	}
	return warnings
}

// toJSONValue round-trips v so the validator sees only JSON-native types.
func toJSONValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
