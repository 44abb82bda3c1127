package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLogger_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	var seen string
	h := Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		LoggerFrom(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if seen == "" {
		t.Fatal("Expected a request ID in context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("Expected response header %q, got %q", seen, got)
	}
	out := buf.String()
	if !strings.Contains(out, "request_id="+seen) {
		t.Errorf("Expected request_id in logs: %s", out)
	}
	if !strings.Contains(out, "status=418") {
		t.Errorf("Expected status in logs: %s", out)
	}
}

func TestLogger_KeepsIncomingRequestID(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("Expected abc-123, got %q", got)
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	fallback := slog.Default()
	if got := LoggerFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context(), fallback); got != fallback {
		t.Error("Expected fallback logger outside middleware")
	}
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr}
	var _ http.Flusher = rec
	rec.Flush()
	if !rr.Flushed {
		t.Error("Expected Flush to reach the underlying writer")
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/v1/sessions/{id}", "GET", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/v1/sessions/{id}", "GET", "404"))

	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}
