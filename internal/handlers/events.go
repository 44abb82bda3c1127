package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/kode-keras/internal/logger"
	"github.com/jwebster45206/kode-keras/internal/middleware"
	"github.com/jwebster45206/kode-keras/internal/services/events"
	"github.com/jwebster45206/kode-keras/internal/sessions"
)

const defaultKeepalive = 30 * time.Second

// Subscriber opens a pub/sub subscription on a session's event channel.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) *redis.PubSub
}

// EventsHandler streams session transitions as Server-Sent Events.
type EventsHandler struct {
	manager    *sessions.Manager
	subscriber Subscriber
	keepalive  time.Duration
	logger     *slog.Logger
}

func NewEventsHandler(manager *sessions.Manager, subscriber Subscriber, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		manager:    manager,
		subscriber: subscriber,
		keepalive:  defaultKeepalive,
		logger:     logger,
	}
}

// ServeHTTP handles GET /v1/events/sessions/{id}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logger.WithSession(middleware.LoggerFrom(r.Context(), h.logger), id)

	if _, err := h.manager.Get(r.Context(), id); err != nil {
		writeDomainError(w, log, err)
		return
	}

	pubsub := h.subscriber.Subscribe(r.Context(), id)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error("Failed to close pubsub", "error", err)
		}
	}()
	// Wait for the subscription to be confirmed so no event published after
	// the connected event can be missed.
	if _, err := pubsub.Receive(r.Context()); err != nil {
		log.Error("Failed to subscribe to session events", "error", err)
		writeError(w, log, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}
	msgChan := pubsub.Channel()

	log.Info("SSE connection established", "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	h.sendSSE(w, "connected", map[string]any{
		"session_id": id,
		"message":    "Connected to event stream",
	})

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected")
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			m, err := events.Decode(msg.Payload)
			if err != nil {
				log.Error("Failed to decode event", "error", err, "payload", msg.Payload)
				continue
			}
			h.sendSSE(w, string(m.Event.Type), m.Event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				log.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write SSE event", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
