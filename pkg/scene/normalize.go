package scene

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Fallback text used when a generated payload leaves a field empty.
const (
	FallbackTitle       = "Kode Misterius"
	FallbackBackground  = "Situasinya belum jelas, tapi kodenya pasti ada."
	FallbackExplanation = "Belum ada penjelasan untuk scene ini."
)

type rawLine struct {
	Character string `mapstructure:"character"`
	Text      string `mapstructure:"text"`
}

type rawChoice struct {
	Text        string `mapstructure:"text"`
	IsCorrect   bool   `mapstructure:"isCorrect"`
	NextSceneID string `mapstructure:"nextSceneId"`
}

type rawStep struct {
	Choice      string `mapstructure:"choice"`
	Explanation string `mapstructure:"explanation"`
	NextSceneID string `mapstructure:"nextSceneId"`
}

// Normalize turns an untyped payload into a well-formed Scene. It never fails:
// missing or unusable fields fall back to defaults, and choice labels are
// reassigned from position.
func Normalize(raw map[string]any) Scene {
	if raw == nil {
		raw = map[string]any{}
	}

	s := Scene{
		ID:          stringField(raw, "id"),
		Background:  stringField(raw, "background", "situation"),
		SceneTitle:  stringField(raw, "sceneTitle", "title", "scene_title"),
		Explanation: stringField(raw, "explanation"),
		Outcome:     ParseOutcome(stringField(raw, "outcome")),
	}
	if s.Background == "" {
		s.Background = FallbackBackground
	}
	if s.SceneTitle == "" {
		s.SceneTitle = FallbackTitle
	}
	if s.Explanation == "" {
		s.Explanation = FallbackExplanation
	}

	s.Dialog = decodeLines(firstPresent(raw, "dialog", "dialogue"))
	s.Choices = decodeChoices(firstPresent(raw, "choices"))
	s.ConversationHistory = decodeLines(firstPresent(raw, "conversationHistory", "conversation_history"))
	s.StepHistory = decodeSteps(firstPresent(raw, "stepHistory", "step_history"))

	if s.ID == "" {
		s.ID = contentID(s)
	}
	return s
}

var sceneNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kode-keras/scene"))

// contentID derives an id from the normalized content, so the same payload
// always normalizes to the same id.
func contentID(s Scene) string {
	data, err := json.Marshal(s)
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(sceneNamespace, data).String()
}

// Label returns the positional label for the i-th choice: A..Z, then AA, AB, ...
func Label(i int) string {
	if i < 0 {
		return ""
	}
	if i < 26 {
		return string(rune('A' + i))
	}
	return Label(i/26-1) + Label(i%26)
}

// AssignLabels overwrites every choice label with its positional label.
func AssignLabels(choices []Choice) {
	for i := range choices {
		choices[i].Label = Label(i)
	}
}

func decodeLines(v any) []DialogLine {
	out := []DialogLine{}
	for _, item := range elements(v) {
		switch t := item.(type) {
		case string:
			out = append(out, DialogLine{Text: strings.TrimSpace(t)})
		default:
			var rl rawLine
			if !decodeLenient(item, &rl) {
				continue
			}
			out = append(out, DialogLine{
				Character: strings.TrimSpace(rl.Character),
				Text:      strings.TrimSpace(rl.Text),
			})
		}
	}
	return out
}

func decodeChoices(v any) []Choice {
	out := []Choice{}
	for _, item := range elements(v) {
		switch t := item.(type) {
		case string:
			out = append(out, Choice{Text: strings.TrimSpace(t)})
		default:
			var rc rawChoice
			if !decodeLenient(item, &rc) {
				continue
			}
			if m, ok := item.(map[string]any); ok {
				if _, has := m["isCorrect"]; !has {
					if alt, ok := firstPresent(m, "is_correct", "correct").(bool); ok {
						rc.IsCorrect = alt
					}
				}
			}
			out = append(out, Choice{
				Text:        strings.TrimSpace(rc.Text),
				IsCorrect:   rc.IsCorrect,
				NextSceneID: strings.TrimSpace(rc.NextSceneID),
			})
		}
	}
	AssignLabels(out)
	return out
}

func decodeSteps(v any) []StepHistory {
	out := []StepHistory{}
	for _, item := range elements(v) {
		var rs rawStep
		if !decodeLenient(item, &rs) {
			continue
		}
		out = append(out, StepHistory{
			Choice:      rs.Choice,
			Explanation: rs.Explanation,
			NextSceneID: rs.NextSceneID,
		})
	}
	return out
}

// decodeLenient decodes what it can from a map-like item. Field-level type
// mismatches leave the field at its zero value.
func decodeLenient(item any, out any) bool {
	if item == nil {
		return false
	}
	kind := reflect.ValueOf(item).Kind()
	if kind != reflect.Map && kind != reflect.Struct {
		return false
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return false
	}
	_ = dec.Decode(item)
	return true
}

// elements returns the items of a slice or array value, or nil for anything else.
func elements(v any) []any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, int, int64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}
