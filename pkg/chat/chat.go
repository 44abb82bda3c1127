package chat

import (
	"strings"
)

const (
	ChatRoleUser   = "user"      // Player or generation request
	ChatRoleAgent  = "assistant" // Model reply
	ChatRoleSystem = "system"    // Storyteller brief
)

// ChatMessage represents a single message sent to an LLM provider.
// Providers translate it into their own wire types.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is a provider reply.
type ChatResponse struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Usage reports token counts for one call. Providers that do not report
// usage leave it zero.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// maxSpeakerLen bounds how long a leading "Name:" may be before the colon is
// treated as part of the sentence instead of a speaker prefix.
const maxSpeakerLen = 30

// FormatLine renders a dialog line as "Speaker: text". A line that already
// carries a speaker prefix is returned unchanged.
func FormatLine(speaker, text string) string {
	if HasSpeakerPrefix(text) {
		return text
	}
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return text
	}
	return speaker + ": " + text
}

// HasSpeakerPrefix reports whether text starts with a short "Name:" prefix.
func HasSpeakerPrefix(text string) bool {
	idx := strings.Index(text, ":")
	if idx <= 0 || idx > maxSpeakerLen {
		return false
	}
	prefix := text[:idx]
	for _, r := range prefix {
		if r == '.' || r == ',' || r == '!' || r == '?' {
			return false
		}
	}
	// A speaker name has at most two words.
	return len(strings.Fields(prefix)) <= 2
}

// SplitSystem separates leading system messages from the rest, for providers
// that take the system prompt as a separate parameter.
func SplitSystem(messages []ChatMessage) (system string, rest []ChatMessage) {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == ChatRoleSystem {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return sb.String(), rest
}
