package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/kode-keras/pkg/chat"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// PromptState is the reduced view of a scene request that the model sees.
type PromptState struct {
	Round         int              `json:"round"`
	MaxRounds     int              `json:"max_rounds"`
	Conversation  []string         `json:"conversation,omitempty"`
	PreviousPicks []PreviousChoice `json:"previous_choices,omitempty"`
}

// PreviousChoice is one earlier round as the model sees it.
type PreviousChoice struct {
	Round       int    `json:"round"`
	Choice      string `json:"choice"`
	Explanation string `json:"explanation,omitempty"`
}

// ToPromptState reduces req. Conversation lines are windowed to the last
// historyLimit entries; a limit of 0 keeps everything.
func ToPromptState(req scene.Request, historyLimit int) *PromptState {
	ps := &PromptState{
		Round:     req.Step,
		MaxRounds: maxSteps(req),
	}

	lines := req.ConversationHistory
	if historyLimit > 0 && len(lines) > historyLimit {
		lines = lines[len(lines)-historyLimit:]
	}
	for _, l := range lines {
		ps.Conversation = append(ps.Conversation, chat.FormatLine(l.Character, l.Text))
	}
	for i, st := range req.StepHistory {
		ps.PreviousPicks = append(ps.PreviousPicks, PreviousChoice{
			Round:       i + 1,
			Choice:      st.Choice,
			Explanation: st.Explanation,
		})
	}
	return ps
}

// HasContext reports whether there is any earlier round to carry forward.
func (ps *PromptState) HasContext() bool {
	return len(ps.Conversation) > 0 || len(ps.PreviousPicks) > 0
}

// GetStatePrompt renders the carried conversation as a system message.
func GetStatePrompt(req scene.Request, historyLimit int) (chat.ChatMessage, error) {
	ps := ToPromptState(req, historyLimit)
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("failed to marshal prompt state: %w", err)
	}
	return chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: fmt.Sprintf(StatePromptTemplate, data),
	}, nil
}
