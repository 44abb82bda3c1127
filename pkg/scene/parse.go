package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoJSONObject is returned by Decode when the text holds no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in payload")

// jsonObject matches from the first opening brace to the last closing brace,
// which strips code fences and chatter around a model's JSON reply.
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Decode extracts the scene object from raw generator output.
func Decode(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		match := jsonObject.Find(raw)
		if match == nil {
			return nil, ErrNoJSONObject
		}
		m = nil
		if err := json.Unmarshal(match, &m); err != nil {
			return nil, fmt.Errorf("failed to decode scene payload: %w", err)
		}
	}

	// Some models wrap the reply as {"scene": {...}}.
	if len(m) == 1 {
		if inner, ok := m["scene"].(map[string]any); ok {
			return inner, nil
		}
	}
	return m, nil
}

// Parse decodes and normalizes raw generator output. Undecodable input
// yields a minimally valid scene made of fallback text.
func Parse(raw []byte) Scene {
	m, err := Decode(raw)
	if err != nil {
		return Normalize(nil)
	}
	return Normalize(m)
}
