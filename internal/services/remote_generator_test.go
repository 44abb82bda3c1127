package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

func TestRemoteGenerator_GenerateScene(t *testing.T) {
	var got scene.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/scene" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(MockSceneReply))
	}))
	defer server.Close()

	gen := NewRemoteGenerator(server.URL+"/", time.Second)
	raw, err := gen.GenerateScene(context.Background(), scene.Request{Difficulty: scene.DifficultyHard, Step: 2, MaxSteps: 5})
	if err != nil {
		t.Fatalf("GenerateScene() error = %v", err)
	}
	if got.Difficulty != scene.DifficultyHard || got.Step != 2 {
		t.Errorf("Expected hard step 2 forwarded, got %+v", got)
	}
	if s := scene.Parse(raw); s.SceneTitle != "Serah Kamu Aja" {
		t.Errorf("Expected title 'Serah Kamu Aja', got %q", s.SceneTitle)
	}
}

func TestRemoteGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "server error is unavailable",
			status: http.StatusBadGateway,
			body:   `{"error":"Gagal membuat scene"}`,
			check: func(err error) bool {
				var e *ErrProviderUnavailable
				return errors.As(err, &e)
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `slow down`,
			check: func(err error) bool {
				var e *ErrRateLimit
				return errors.As(err, &e)
			},
		},
		{
			name:   "bad request is rejected",
			status: http.StatusBadRequest,
			body:   `{"error":"invalid difficulty"}`,
			check: func(err error) bool {
				var e *ErrRejected
				return errors.As(err, &e) && e.Status == http.StatusBadRequest
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewRemoteGenerator(server.URL, time.Second).GenerateScene(context.Background(), scene.Request{Difficulty: scene.DifficultyEasy, Step: 1})
			if err == nil || !tt.check(err) {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestRemoteGenerator_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewRemoteGenerator(url, time.Second).GenerateScene(context.Background(), scene.Request{Difficulty: scene.DifficultyEasy, Step: 1})
	var e *ErrProviderUnavailable
	if !errors.As(err, &e) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}
