package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/kode-keras/internal/middleware"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// SceneHandler generates a single normalized scene outside any session.
// GET  /v1/scene - easy tier, round 1
// POST /v1/scene - body is a scene.Request
type SceneHandler struct {
	gen    conversation.Generator
	logger *slog.Logger
}

func NewSceneHandler(gen conversation.Generator, logger *slog.Logger) *SceneHandler {
	return &SceneHandler{gen: gen, logger: logger}
}

func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context(), h.logger)

	req := scene.Request{Difficulty: scene.DifficultyEasy, Step: 1}
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req); err != nil {
			log.Warn("Invalid scene request body", "error", err)
			writeError(w, log, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	d, err := scene.ParseDifficulty(string(req.Difficulty))
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	req.Difficulty = d
	// The tier decides the round count; a client-supplied maxSteps is ignored.
	req.MaxSteps = d.MaxSteps()
	if req.Step < 1 || req.Step > req.MaxSteps {
		writeError(w, log, http.StatusBadRequest, "step must be between 1 and the tier's round count")
		return
	}

	raw, err := h.gen.GenerateScene(r.Context(), req)
	if err != nil {
		log.Error("Failed to generate scene", "error", err, "difficulty", req.Difficulty, "step", req.Step)
		writeError(w, log, http.StatusBadGateway, generationFailedMessage)
		return
	}

	writeJSON(w, log, http.StatusOK, scene.Parse(raw))
}
