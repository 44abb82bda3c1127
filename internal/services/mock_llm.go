package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

// MockSceneReply is the default reply of MockLLMAPI: a valid scene payload.
const MockSceneReply = `{
  "sceneTitle": "Serah Kamu Aja",
  "situation": "Kalian lagi bingung mau makan malam di mana.",
  "dialogue": [
    {"character": "Cowok", "text": "Mau makan apa?"},
    {"character": "Cewek", "text": "Serah kamu aja..."}
  ],
  "choices": [
    {"text": "Oke, nasi padang ya.", "isCorrect": false},
    {"text": "Aku ada tiga pilihan, kamu pilih satu ya.", "isCorrect": true},
    {"text": "Yaudah nggak usah makan.", "isCorrect": false}
  ],
  "explanation": "Serah kamu artinya dia mau dilibatkan, bukan dilepas."
}`

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc       func(ctx context.Context, modelName string) error
	GetChatResponseFunc func(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (*chat.ChatResponse, error)
	IsModelReadyFunc    func(ctx context.Context, modelName string) (bool, error)

	// Track calls for testing
	InitModelCalls       []string
	GetChatResponseCalls []GetChatResponseCall
	IsModelReadyCalls    []string

	mu sync.Mutex // protects all fields above
}

type GetChatResponseCall struct {
	Messages []chat.ChatMessage
	Schema   *ResponseSchema
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:       make([]string, 0),
		GetChatResponseCalls: make([]GetChatResponseCall, 0),
		IsModelReadyCalls:    make([]string, 0),
	}
}

func (m *MockLLMAPI) ModelID() string {
	return "mock"
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// GetChatResponse mocks response generation
func (m *MockLLMAPI) GetChatResponse(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (*chat.ChatResponse, error) {
	m.mu.Lock()
	m.GetChatResponseCalls = append(m.GetChatResponseCalls, GetChatResponseCall{
		Messages: messages,
		Schema:   schema,
	})
	fn := m.GetChatResponseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, schema)
	}
	return &chat.ChatResponse{Message: MockSceneReply, Model: "mock"}, nil
}

// IsModelReady mocks model readiness check
func (m *MockLLMAPI) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IsModelReadyCalls = append(m.IsModelReadyCalls, modelName)
	if m.IsModelReadyFunc != nil {
		return m.IsModelReadyFunc(ctx, modelName)
	}
	return true, nil
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.GetChatResponseCalls = make([]GetChatResponseCall, 0)
	m.IsModelReadyCalls = make([]string, 0)
}

// SetGetChatResponseError sets up the mock to return an error on GetChatResponse
func (m *MockLLMAPI) SetGetChatResponseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetChatResponseFunc = func(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetReply sets up the mock to return a fixed message
func (m *MockLLMAPI) SetReply(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetChatResponseFunc = func(ctx context.Context, messages []chat.ChatMessage, schema *ResponseSchema) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: message, Model: "mock"}, nil
	}
}

// SetModelNotReady sets up the mock to return false for IsModelReady
func (m *MockLLMAPI) SetModelNotReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsModelReadyFunc = func(ctx context.Context, modelName string) (bool, error) {
		return false, nil
	}
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []GetChatResponseCall, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	respCalls := make([]GetChatResponseCall, len(m.GetChatResponseCalls))
	copy(respCalls, m.GetChatResponseCalls)

	readyCalls := make([]string, len(m.IsModelReadyCalls))
	copy(readyCalls, m.IsModelReadyCalls)

	return initCalls, respCalls, readyCalls
}
