package scene

import (
	"encoding/json"
	"strings"
)

// DialogLine is a single utterance within a scene.
type DialogLine struct {
	Character string `json:"character"`
	Text      string `json:"text"`
}

// Choice is one of the replies the player can pick.
// Label is always derived from the choice's position, never trusted from the source.
type Choice struct {
	Text        string `json:"text"`
	IsCorrect   bool   `json:"isCorrect"`
	Label       string `json:"label,omitempty"`
	NextSceneID string `json:"nextSceneId,omitempty"`
}

// StepHistory records one completed round of a multi-step conversation.
type StepHistory struct {
	Choice      string `json:"choice"`
	Explanation string `json:"explanation"`
	NextSceneID string `json:"nextSceneId,omitempty"`
}

// Outcome is the result of a finished conversation. The zero value means
// no outcome yet and encodes as JSON null.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// ParseOutcome returns OutcomeNone for anything that is not win or lose.
func ParseOutcome(s string) Outcome {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeWin:
		return OutcomeWin
	case OutcomeLose:
		return OutcomeLose
	default:
		return OutcomeNone
	}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o == OutcomeNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(o))
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		*o = OutcomeNone
		return nil
	}
	*o = ParseOutcome(*s)
	return nil
}

// Scene is the content for one round of a conversation.
type Scene struct {
	ID                  string        `json:"id"`
	Background          string        `json:"background"`
	SceneTitle          string        `json:"sceneTitle"`
	Dialog              []DialogLine  `json:"dialog"`
	Choices             []Choice      `json:"choices"`
	Explanation         string        `json:"explanation"`
	ConversationHistory []DialogLine  `json:"conversationHistory"`
	StepHistory         []StepHistory `json:"stepHistory"`
	Outcome             Outcome       `json:"outcome"`
}

// ChoiceByLabel returns the choice with the given label, matched case-insensitively.
func (s *Scene) ChoiceByLabel(label string) (Choice, bool) {
	label = strings.TrimSpace(label)
	for _, c := range s.Choices {
		if strings.EqualFold(c.Label, label) {
			return c, true
		}
	}
	return Choice{}, false
}

// CorrectChoice returns the first choice flagged correct.
func (s *Scene) CorrectChoice() (Choice, bool) {
	for _, c := range s.Choices {
		if c.IsCorrect {
			return c, true
		}
	}
	return Choice{}, false
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	out.Dialog = append([]DialogLine{}, s.Dialog...)
	out.Choices = append([]Choice{}, s.Choices...)
	out.ConversationHistory = append([]DialogLine{}, s.ConversationHistory...)
	out.StepHistory = append([]StepHistory{}, s.StepHistory...)
	return &out
}

// ToMap converts the scene back into the untyped shape accepted by Normalize.
func (s *Scene) ToMap() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Request carries everything a generator needs to produce the next round.
type Request struct {
	Difficulty          Difficulty    `json:"difficulty"`
	Step                int           `json:"step"`
	MaxSteps            int           `json:"maxSteps,omitempty"`
	ConversationHistory []DialogLine  `json:"conversationHistory,omitempty"`
	StepHistory         []StepHistory `json:"stepHistory,omitempty"`
	RecentTitles        []string      `json:"recentTitles,omitempty"`
}

// IsTerminal reports whether the requested step is the last round of its tier.
func (r Request) IsTerminal() bool {
	max := r.MaxSteps
	if max == 0 {
		if t, err := TierFor(r.Difficulty); err == nil {
			max = t.MaxSteps
		}
	}
	return r.Step >= max
}
