package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/kode-keras/pkg/chat"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// Builder constructs chat messages for a scene request using a fluent interface.
type Builder struct {
	req          *scene.Request
	historyLimit int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 40,
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithRequest sets the scene request.
func (b *Builder) WithRequest(req scene.Request) *Builder {
	b.req = &req
	return b
}

// WithHistoryLimit sets how many carried dialog lines are included.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.req == nil {
		return nil, fmt.Errorf("scene request is required")
	}
	if !b.req.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: %q", scene.ErrInvalidDifficulty, string(b.req.Difficulty))
	}
	if b.req.Step < 1 || b.req.Step > maxSteps(*b.req) {
		return nil, fmt.Errorf("step %d out of range for %s", b.req.Step, b.req.Difficulty)
	}

	b.messages = make([]chat.ChatMessage, 0, 3)

	// 1. Storyteller brief
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: SystemPrompt,
	})

	// 2. Conversation so far
	if err := b.addState(); err != nil {
		return nil, fmt.Errorf("error building state prompt: %w", err)
	}

	// 3. The request itself
	b.addUserMessage()

	return b.messages, nil
}

func (b *Builder) addState() error {
	if b.req.Step == 1 || !ToPromptState(*b.req, b.historyLimit).HasContext() {
		return nil
	}
	msg, err := GetStatePrompt(*b.req, b.historyLimit)
	if err != nil {
		return err
	}
	b.messages = append(b.messages, msg)
	return nil
}

func (b *Builder) addUserMessage() {
	var sb strings.Builder
	sb.WriteString(UserPrompt(*b.req))

	if b.req.Step > 1 {
		sb.WriteString("\n" + ContinuationPrompt)
	} else {
		sb.WriteString("\n" + NewConversationPrompt)
	}
	if b.req.IsTerminal() {
		sb.WriteString("\n" + TerminalPrompt)
	}
	if len(b.req.RecentTitles) > 0 {
		quoted := make([]string, len(b.req.RecentTitles))
		for i, t := range b.req.RecentTitles {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		sb.WriteString("\n" + fmt.Sprintf(RecentTitlesPrompt, strings.Join(quoted, ", ")))
	}

	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: sb.String(),
	})
}

// BuildMessages is a convenience function for the common case.
func BuildMessages(req scene.Request, historyLimit int) ([]chat.ChatMessage, error) {
	return New().
		WithRequest(req).
		WithHistoryLimit(historyLimit).
		Build()
}
