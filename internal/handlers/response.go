package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/internal/storage"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// Player-facing message for a failed scene fetch.
const generationFailedMessage = "Gagal membuat scene baru. Coba lagi ya!"

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes and messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, scene.ErrInvalidDifficulty):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrLocked):
		// Another replica is fetching for this session.
		return http.StatusConflict, conversation.ErrFetchInFlight.Error()
	case errors.Is(err, conversation.ErrGeneration):
		return http.StatusBadGateway, generationFailedMessage
	case errors.Is(err, conversation.ErrPrecondition),
		errors.Is(err, conversation.ErrFetchInFlight),
		errors.Is(err, conversation.ErrStaleScene):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "status", status)
	} else {
		logger.Warn("Request rejected", "error", err, "status", status)
	}
	writeError(w, logger, status, msg)
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
