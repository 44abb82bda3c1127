package textfilter

import (
	"testing"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

func TestProfanityFilter_FilterText(t *testing.T) {
	filter := NewProfanityFilter()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple profanity replacement",
			input:    "What the hell is going on?",
			expected: "What the heck is going on?",
		},
		{
			name:     "indonesian profanity",
			input:    "Dasar goblok, kamu lupa lagi!",
			expected: "Dasar bego, kamu lupa lagi!",
		},
		{
			name:     "case preservation - uppercase",
			input:    "ANJIR kamu telat sejam!",
			expected: "ASTAGA kamu telat sejam!",
		},
		{
			name:     "case preservation - title case",
			input:    "Brengsek, aku nunggu dari tadi.",
			expected: "Nyebelin, aku nunggu dari tadi.",
		},
		{
			name:     "mixed case profanity",
			input:    "DaMn good!",
			expected: "DaNg good!",
		},
		{
			name:     "word boundaries - partial matches should not be replaced",
			input:    "Kita ke pantai aja, bisa santai.",
			expected: "Kita ke pantai aja, bisa santai.",
		},
		{
			name:     "english words containing a short match",
			input:    "I need to process this classical data",
			expected: "I need to process this classical data",
		},
		{
			name:     "plural keeps suffix",
			input:    "Too many assholes and bastards here!",
			expected: "Too many jerks and jerks here!",
		},
		{
			name:     "reduplicated indonesian plural",
			input:    "anjing-anjing",
			expected: "astaga-astaga",
		},
		{
			name:     "censored replacement ignores case",
			input:    "BABI!",
			expected: "[disensor]!",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filter.FilterText(tt.input)
			if result != tt.expected {
				t.Errorf("FilterText(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestProfanityFilter_ContainsProfanity(t *testing.T) {
	filter := NewProfanityFilter()

	tests := []struct {
		input    string
		expected bool
	}{
		{"Serah kamu aja.", false},
		{"Kamu tuh kampret banget.", true},
		{"What the HELL", true},
		{"Santai dulu di pantai", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := filter.ContainsProfanity(tt.input); got != tt.expected {
				t.Errorf("ContainsProfanity(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestProfanityFilter_FilterScene(t *testing.T) {
	filter := NewProfanityFilter()
	s := &scene.Scene{
		SceneTitle:  "Telat Lagi, Anjir",
		Background:  "Dia nunggu di kafe.",
		Explanation: "Jangan bilang dia tolol.",
		Dialog:      []scene.DialogLine{{Character: "Cewek", Text: "Brengsek, sejam!"}},
		Choices:     []scene.Choice{{Text: "Maaf, aku goblok banget.", Label: "A"}},
	}

	filter.FilterScene(s)

	if s.SceneTitle != "Telat Lagi, Astaga" {
		t.Errorf("Unexpected title %q", s.SceneTitle)
	}
	if s.Explanation != "Jangan bilang dia bego." {
		t.Errorf("Unexpected explanation %q", s.Explanation)
	}
	if s.Dialog[0].Text != "Nyebelin, sejam!" {
		t.Errorf("Unexpected dialog %q", s.Dialog[0].Text)
	}
	if s.Choices[0].Text != "Maaf, aku bego banget." {
		t.Errorf("Unexpected choice %q", s.Choices[0].Text)
	}

	filter.FilterScene(nil)
}
