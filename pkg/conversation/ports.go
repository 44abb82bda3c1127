package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// DefaultStoreKey is the key progress is saved under when no session key is set.
const DefaultStoreKey = "kode-keras-game-storage"

// Generator produces the raw payload for one round. The payload only needs
// to approximate a scene; the machine normalizes it.
type Generator interface {
	GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req scene.Request) (json.RawMessage, error)

func (f GeneratorFunc) GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Progress is the persisted subset of a session.
type Progress struct {
	History    []scene.Scene    `json:"history"`
	Score      int              `json:"score"`
	Difficulty scene.Difficulty `json:"difficulty"`
}

// Store persists progress under a key.
type Store interface {
	SaveProgress(ctx context.Context, key string, p *Progress) error
	// LoadProgress returns nil, nil when nothing is stored under key.
	LoadProgress(ctx context.Context, key string) (*Progress, error)
	DeleteProgress(ctx context.Context, key string) error
}

// EventType names a transition notification.
type EventType string

const (
	EventDifficultySelected   EventType = "difficulty.selected"
	EventSceneRequested       EventType = "scene.requested"
	EventSceneLoaded          EventType = "scene.loaded"
	EventSceneFailed          EventType = "scene.failed"
	EventChoiceSelected       EventType = "choice.selected"
	EventStepAdvanced         EventType = "step.advanced"
	EventConversationResolved EventType = "conversation.resolved"
	EventConversationArchived EventType = "conversation.archived"
	EventSessionReset         EventType = "session.reset"
)

// Event is emitted to the observer after a transition.
type Event struct {
	Type       EventType        `json:"type"`
	Key        string           `json:"key"`
	Phase      Phase            `json:"phase"`
	Step       int              `json:"step"`
	Score      int              `json:"score"`
	Difficulty scene.Difficulty `json:"difficulty"`
	Outcome    scene.Outcome    `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	At         time.Time        `json:"at"`
}

// Observer receives transition events. It is called without the machine
// lock held and must not block for long.
type Observer func(ctx context.Context, ev Event)
