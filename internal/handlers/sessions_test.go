package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/internal/storage"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

const testScene = `{
  "sceneTitle": "Serah Kamu Aja",
  "situation": "Bingung makan di mana.",
  "dialogue": [{"character": "Cewek", "text": "Serah kamu aja..."}],
  "choices": [
    {"text": "Nasi padang", "isCorrect": false},
    {"text": "Kasih tiga opsi", "isCorrect": true}
  ],
  "explanation": "Ajak mikir bareng."
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticGenerator() conversation.Generator {
	return conversation.GeneratorFunc(func(ctx context.Context, req scene.Request) (json.RawMessage, error) {
		return json.RawMessage(testScene), nil
	})
}

type okBackend struct{}

func (okBackend) Ready(ctx context.Context) (bool, error) { return true, nil }

type testServer struct {
	handler http.Handler
	manager *sessions.Manager
	store   *storage.MockStorage
}

func newTestServer(t *testing.T, gen conversation.Generator) *testServer {
	t.Helper()
	store := storage.NewMockStorage()
	manager := sessions.NewManager(gen,
		sessions.WithStore(store),
		sessions.WithLogger(testLogger()))
	return &testServer{
		handler: NewRouter(RouterConfig{
			Manager:   manager,
			Generator: gen,
			Storage:   store,
			Backend:   okBackend{},
			Logger:    testLogger(),
		}),
		manager: manager,
		store:   store,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (ts *testServer) create(t *testing.T, difficulty string) SessionResponse {
	t.Helper()
	var body any
	if difficulty != "" {
		body = map[string]string{"difficulty": difficulty}
	}
	w := ts.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeSession(t, w)
}

func TestSessions_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedDiff   scene.Difficulty
	}{
		{name: "no body defaults to easy", expectedStatus: http.StatusCreated, expectedDiff: scene.DifficultyEasy},
		{name: "medium", body: map[string]string{"difficulty": "medium"}, expectedStatus: http.StatusCreated, expectedDiff: scene.DifficultyMedium},
		{name: "case insensitive", body: map[string]string{"difficulty": "HARD"}, expectedStatus: http.StatusCreated, expectedDiff: scene.DifficultyHard},
		{name: "unknown tier", body: map[string]string{"difficulty": "extreme"}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, staticGenerator())
			w := ts.do(t, http.MethodPost, "/v1/sessions", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				return
			}
			resp := decodeSession(t, w)
			assert.NotEmpty(t, resp.ID)
			assert.Equal(t, tt.expectedDiff, resp.Difficulty)
			assert.Equal(t, conversation.PhaseIdle, resp.Phase)
			assert.Equal(t, tt.expectedDiff.MaxSteps(), resp.MaxSteps)
			assert.Equal(t, "/v1/sessions/"+resp.ID, w.Header().Get("Location"))
		})
	}
}

func TestSessions_GetUnknown(t *testing.T) {
	ts := newTestServer(t, staticGenerator())

	for _, id := range []string{"not-a-uuid", "2b7c1b9e-3c55-4d4b-9d0e-8c1f3e4b5a6d"} {
		w := ts.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", id, w.Code)
		}
	}
}

func TestSessions_EasyRoundTrip(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "")
	base := "/v1/sessions/" + s.ID

	w := ts.do(t, http.MethodPost, base+"/scene", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeSession(t, w)
	assert.Equal(t, conversation.PhaseAwaitingChoice, resp.Phase)
	require.NotNil(t, resp.CurrentScene)
	assert.Equal(t, "Serah Kamu Aja", resp.CurrentScene.SceneTitle)
	assert.Equal(t, "B", resp.CurrentScene.Choices[1].Label)

	w = ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "b"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeSession(t, w)
	assert.Equal(t, conversation.PhaseConversationResolved, resp.Phase)
	assert.Equal(t, scene.OutcomeWin, resp.ConversationOutcome)
	assert.Equal(t, 1, resp.Score)
	assert.True(t, resp.ShowExplanation)

	w = ts.do(t, http.MethodPut, base+"/explanation", ExplanationRequest{Visible: false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeSession(t, w).ShowExplanation)

	w = ts.do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeSession(t, w)
	assert.Len(t, resp.History, 1)
	assert.Equal(t, conversation.PhaseAwaitingChoice, resp.Phase)

	w = ts.do(t, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Equal(t, 1, hist.Score)
	assert.Equal(t, 1, hist.Total)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "Kasih tiga opsi", hist.Entries[0].CorrectAnswer)
	assert.Equal(t, scene.OutcomeWin, hist.Entries[0].Outcome)
	assert.Equal(t, "Bingung makan di mana.", hist.Entries[0].Situation)

	p, err := ts.store.LoadProgress(context.Background(), sessions.StoreKey(s.ID))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Score)
	assert.Len(t, p.History, 1)
}

func TestSessions_MediumAdvance(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "medium")
	base := "/v1/sessions/" + s.ID

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/scene", nil).Code)

	w := ts.do(t, http.MethodPost, base+"/advance", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 advancing without a choice, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "A"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, conversation.PhaseChoiceMade, resp.Phase)
	assert.Equal(t, 0, resp.Score)

	w = ts.do(t, http.MethodPost, base+"/next", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 proceeding mid-conversation, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decodeSession(t, w)
	assert.Equal(t, 2, resp.CurrentStep)
	assert.Nil(t, resp.SelectedChoice)
	require.NotNil(t, resp.CurrentScene)
	assert.Len(t, resp.CurrentScene.StepHistory, 1)
}

func TestSessions_ChoiceErrors(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "")
	base := "/v1/sessions/" + s.ID

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{name: "missing label", body: map[string]string{}, expectedStatus: http.StatusBadRequest},
		{name: "no scene yet", body: ChoiceRequest{Label: "A"}, expectedStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, base+"/choice", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/scene", nil).Code)

	w := ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "Z"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPut, base+"/explanation", ExplanationRequest{Visible: true})
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "A"}).Code)
	w = ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "B"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSessions_GenerationFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	gen := conversation.GeneratorFunc(func(ctx context.Context, req scene.Request) (json.RawMessage, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return json.RawMessage(testScene), nil
	})
	ts := newTestServer(t, gen)
	s := ts.create(t, "")
	base := "/v1/sessions/" + s.ID

	w := ts.do(t, http.MethodPost, base+"/scene", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", w.Code)
	}
	assert.Equal(t, generationFailedMessage, decodeError(t, w).Error)

	w = ts.do(t, http.MethodGet, base, nil)
	resp := decodeSession(t, w)
	assert.Equal(t, conversation.PhaseIdle, resp.Phase)
	assert.False(t, resp.Loading)

	fail.Store(false)
	w = ts.do(t, http.MethodPost, base+"/scene", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessions_DifficultyAndReset(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "")
	base := "/v1/sessions/" + s.ID

	w := ts.do(t, http.MethodPut, base+"/difficulty", DifficultyRequest{Difficulty: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, base+"/difficulty", DifficultyRequest{Difficulty: "hard"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeSession(t, w).MaxSteps)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/scene", nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Label: "B"}).Code)

	w = ts.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, 0, resp.Score)
	assert.Nil(t, resp.CurrentScene)
	assert.Equal(t, scene.DifficultyHard, resp.Difficulty)
}

func TestSessions_Delete(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "")

	w := ts.do(t, http.MethodDelete, "/v1/sessions/"+s.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/v1/sessions/"+s.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestSessions_RestoredAfterEviction(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	s := ts.create(t, "medium")

	other := sessions.NewManager(staticGenerator(),
		sessions.WithStore(ts.store),
		sessions.WithLogger(testLogger()))
	handler := NewRouter(RouterConfig{
		Manager:   other,
		Generator: staticGenerator(),
		Storage:   ts.store,
		Backend:   okBackend{},
		Logger:    testLogger(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+s.ID, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scene.DifficultyMedium, decodeSession(t, w).Difficulty)
}

func TestSessions_InvalidBody(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}
