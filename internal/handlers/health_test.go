package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jwebster45206/kode-keras/internal/services"
	"github.com/jwebster45206/kode-keras/internal/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name              string
		setupStorage      func() Pinger
		setupBackend      func() ReadyChecker
		expectedStatus    int
		expectedHealth    string
		expectedStorage   string
		expectedGenerator string
	}{
		{
			name:         "all healthy",
			setupStorage: func() Pinger { return storage.NewMockStorage() },
			setupBackend: func() ReadyChecker {
				return &services.Backend{Provider: "mock", LLM: services.NewMockLLMAPI()}
			},
			expectedStatus:    http.StatusOK,
			expectedHealth:    "healthy",
			expectedStorage:   "healthy",
			expectedGenerator: "healthy",
		},
		{
			name: "unhealthy storage",
			setupStorage: func() Pinger {
				s := storage.NewMockStorage()
				s.SetPingError(errors.New("connection failed"))
				return s
			},
			setupBackend:      func() ReadyChecker { return &services.Backend{Provider: "fixture"} },
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedStorage:   "unhealthy",
			expectedGenerator: "healthy",
		},
		{
			name:         "model not ready",
			setupStorage: func() Pinger { return storage.NewMockStorage() },
			setupBackend: func() ReadyChecker {
				llm := services.NewMockLLMAPI()
				llm.SetModelNotReady()
				return &services.Backend{Provider: "mock", LLM: llm}
			},
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedStorage:   "healthy",
			expectedGenerator: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.setupStorage(), tt.setupBackend(), testLogger())

			req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status %s, got %s", tt.expectedHealth, response.Status)
			}
			if response.Service != "kode-keras" {
				t.Errorf("Expected service kode-keras, got %s", response.Service)
			}
			if response.Components["storage"] != tt.expectedStorage {
				t.Errorf("Expected storage %s, got %s", tt.expectedStorage, response.Components["storage"])
			}
			if response.Components["generator"] != tt.expectedGenerator {
				t.Errorf("Expected generator %s, got %s", tt.expectedGenerator, response.Components["generator"])
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	ts.do(t, http.MethodGet, "/health", nil)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "kodekeras_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
}

func TestRouter_RequestID(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}
