package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/kode-keras/internal/logger"
	"github.com/jwebster45206/kode-keras/internal/middleware"
	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// SessionResponse is a session ID plus the full conversation state.
type SessionResponse struct {
	ID string `json:"id"`
	conversation.State
}

type CreateSessionRequest struct {
	Difficulty scene.Difficulty `json:"difficulty,omitempty"`
}

type DifficultyRequest struct {
	Difficulty scene.Difficulty `json:"difficulty"`
}

type ChoiceRequest struct {
	Label string `json:"label"`
}

type ExplanationRequest struct {
	Visible bool `json:"visible"`
}

// HistoryEntry is one archived scene as shown on the history page.
type HistoryEntry struct {
	ID            string              `json:"id"`
	Title         string              `json:"sceneTitle"`
	Situation     string              `json:"situation"`
	Dialog        []scene.DialogLine  `json:"dialog"`
	CorrectAnswer string              `json:"correctAnswer"`
	Outcome       scene.Outcome       `json:"outcome"`
	Steps         []scene.StepHistory `json:"stepHistory,omitempty"`
}

type HistoryResponse struct {
	ID      string         `json:"id"`
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Entries []HistoryEntry `json:"entries"`
}

type SessionsHandler struct {
	manager *sessions.Manager
	logger  *slog.Logger
}

func NewSessionsHandler(manager *sessions.Manager, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{manager: manager, logger: logger}
}

// Routes mounts the session endpoints under /v1/sessions.
func (h *SessionsHandler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.deleteSession)
		r.Get("/history", h.history)
		r.Put("/difficulty", h.selectDifficulty)
		r.Post("/scene", h.transition(func(ctx context.Context, m *conversation.Machine) error {
			_, err := m.RequestScene(ctx)
			return err
		}))
		r.Post("/choice", h.selectChoice)
		r.Put("/explanation", h.explanation)
		r.Post("/advance", h.transition(func(ctx context.Context, m *conversation.Machine) error {
			_, err := m.AdvanceStep(ctx)
			return err
		}))
		r.Post("/next", h.transition(func(ctx context.Context, m *conversation.Machine) error {
			_, err := m.ProceedToNextConversation(ctx)
			return err
		}))
		r.Post("/reset", h.transition(func(ctx context.Context, m *conversation.Machine) error {
			_, err := m.ResetSession(ctx)
			return err
		}))
	})
}

func (h *SessionsHandler) respond(w http.ResponseWriter, log *slog.Logger, status int, s *sessions.Session) {
	writeJSON(w, log, status, SessionResponse{ID: s.ID, State: s.Machine.State()})
}

// lookup resolves {id}, writing the error response itself on failure.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*sessions.Session, *slog.Logger, bool) {
	id := chi.URLParam(r, "id")
	log := logger.WithSession(middleware.LoggerFrom(r.Context(), h.logger), id)

	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, log, err)
		return nil, log, false
	}
	return s, log, true
}

// transition runs a body-less machine operation and returns the new state.
func (h *SessionsHandler) transition(op func(context.Context, *conversation.Machine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, log, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if err := op(r.Context(), s.Machine); err != nil {
			writeDomainError(w, log, err)
			return
		}
		h.respond(w, log, http.StatusOK, s)
	}
}

func (h *SessionsHandler) create(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context(), h.logger)

	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Difficulty != "" {
		d, err := scene.ParseDifficulty(string(req.Difficulty))
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		req.Difficulty = d
	}

	s, err := h.manager.Create(r.Context(), req.Difficulty)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+s.ID)
	h.respond(w, log, http.StatusCreated, s)
}

func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request) {
	s, log, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, log, http.StatusOK, s)
}

func (h *SessionsHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logger.WithSession(middleware.LoggerFrom(r.Context(), h.logger), id)

	if err := h.manager.Delete(r.Context(), id); err != nil {
		writeDomainError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) selectDifficulty(w http.ResponseWriter, r *http.Request) {
	s, log, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req DifficultyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, err := scene.ParseDifficulty(string(req.Difficulty))
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	if _, err := s.Machine.SelectDifficulty(r.Context(), d); err != nil {
		writeDomainError(w, log, err)
		return
	}
	h.respond(w, log, http.StatusOK, s)
}

func (h *SessionsHandler) selectChoice(w http.ResponseWriter, r *http.Request) {
	s, log, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req ChoiceRequest
	if err := decodeBody(r, &req); err != nil || req.Label == "" {
		writeError(w, log, http.StatusBadRequest, "label is required")
		return
	}
	if _, err := s.Machine.SelectChoice(r.Context(), req.Label); err != nil {
		writeDomainError(w, log, err)
		return
	}
	h.respond(w, log, http.StatusOK, s)
}

func (h *SessionsHandler) explanation(w http.ResponseWriter, r *http.Request) {
	s, log, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req ExplanationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, log, http.StatusBadRequest, "Invalid request body")
		return
	}

	var err error
	if req.Visible {
		_, err = s.Machine.ShowExplanation()
	} else {
		_, err = s.Machine.HideExplanation()
	}
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	h.respond(w, log, http.StatusOK, s)
}

func (h *SessionsHandler) history(w http.ResponseWriter, r *http.Request) {
	s, log, ok := h.lookup(w, r)
	if !ok {
		return
	}

	archived := s.Machine.History()
	resp := HistoryResponse{
		ID:      s.ID,
		Score:   s.Machine.Score(),
		Total:   len(archived),
		Entries: make([]HistoryEntry, 0, len(archived)),
	}
	for _, sc := range archived {
		entry := HistoryEntry{
			ID:        sc.ID,
			Title:     sc.SceneTitle,
			Situation: sc.Background,
			Dialog:    sc.Dialog,
			Outcome:   sc.Outcome,
			Steps:     sc.StepHistory,
		}
		if c, ok := sc.CorrectChoice(); ok {
			entry.CorrectAnswer = c.Text
		}
		resp.Entries = append(resp.Entries, entry)
	}
	writeJSON(w, log, http.StatusOK, resp)
}
