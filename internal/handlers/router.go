package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/kode-keras/internal/middleware"
	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// RouterConfig holds the collaborators the HTTP surface is built from.
// Subscriber may be nil, in which case the events route is not mounted.
type RouterConfig struct {
	Manager    *sessions.Manager
	Generator  conversation.Generator
	Storage    Pinger
	Backend    ReadyChecker
	Subscriber Subscriber
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Metrics)

	r.Method(http.MethodGet, "/health", NewHealthHandler(cfg.Storage, cfg.Backend, cfg.Logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	sceneHandler := NewSceneHandler(cfg.Generator, cfg.Logger)
	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/scene", sceneHandler)
		r.Method(http.MethodPost, "/scene", sceneHandler)

		r.Route("/sessions", NewSessionsHandler(cfg.Manager, cfg.Logger).Routes)

		if cfg.Subscriber != nil {
			r.Method(http.MethodGet, "/events/sessions/{id}", NewEventsHandler(cfg.Manager, cfg.Subscriber, cfg.Logger))
		}
	})
	return r
}
