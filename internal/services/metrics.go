package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jwebster45206/kode-keras/pkg/chat"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kodekeras_llm_requests_total",
			Help: "Total number of requests to LLM providers.",
		},
		[]string{"provider", "model", "status"},
	)
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kodekeras_llm_request_duration_seconds",
			Help:    "Duration of LLM provider requests.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kodekeras_llm_tokens_total",
			Help: "Tokens reported by LLM providers.",
		},
		[]string{"provider", "model", "direction"},
	)
	sceneGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kodekeras_scene_generations_total",
			Help: "Scene generations by source and result.",
		},
		[]string{"source", "status"},
	)
	sceneSchemaWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kodekeras_scene_schema_warnings_total",
			Help: "Generated payloads that did not match the scene schema.",
		},
	)
)

// observeLLM records one provider call.
func observeLLM(provider, model string, start time.Time, resp *chat.ChatResponse, err error) {
	llmRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
	llmRequestsTotal.WithLabelValues(provider, model, errorStatus(err)).Inc()
	if resp != nil {
		llmTokensTotal.WithLabelValues(provider, model, "input").Add(float64(resp.Usage.InputTokens))
		llmTokensTotal.WithLabelValues(provider, model, "output").Add(float64(resp.Usage.OutputTokens))
	}
}

func observeScene(source string, err error) {
	sceneGenerationsTotal.WithLabelValues(source, errorStatus(err)).Inc()
}

func errorStatus(err error) string {
	if err == nil {
		return "success"
	}
	var (
		rl  *ErrRateLimit
		inv *ErrInvalidResponse
		rej *ErrRejected
	)
	switch {
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.As(err, &inv):
		return "invalid"
	case errors.As(err, &rej):
		return "rejected"
	default:
		return "error"
	}
}
