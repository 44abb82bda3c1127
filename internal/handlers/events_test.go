package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/kode-keras/internal/services/events"
	"github.com/jwebster45206/kode-keras/internal/sessions"
	"github.com/jwebster45206/kode-keras/internal/storage"
	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

type sseEvent struct {
	name string
	data string
}

// readEvents parses an SSE stream into events until the body closes.
func readEvents(body *bufio.Reader, out chan<- sseEvent) {
	defer close(out)
	var ev sseEvent
	for {
		line, err := body.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.name != "":
			out <- ev
			ev = sseEvent{}
		}
	}
}

func nextEvent(t *testing.T, ch <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("Event stream closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return sseEvent{}
}

func TestEventsHandler_StreamsTransitions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	broadcaster := events.NewBroadcaster(client, testLogger())
	store := storage.NewMockStorage()
	manager := sessions.NewManager(staticGenerator(),
		sessions.WithStore(store),
		sessions.WithObservers(broadcaster),
		sessions.WithLogger(testLogger()))

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Manager:    manager,
		Generator:  staticGenerator(),
		Storage:    store,
		Backend:    okBackend{},
		Subscriber: broadcaster,
		Logger:     testLogger(),
	}))
	defer srv.Close()

	s, err := manager.Create(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/sessions/"+s.ID, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	ch := make(chan sseEvent, 16)
	go readEvents(bufio.NewReader(resp.Body), ch)

	if ev := nextEvent(t, ch); ev.name != "connected" {
		t.Fatalf("Expected connected event, got %s", ev.name)
	}

	_, err = s.Machine.RequestScene(context.Background())
	require.NoError(t, err)

	ev := nextEvent(t, ch)
	if ev.name != string(conversation.EventSceneRequested) {
		t.Errorf("Expected %s, got %s", conversation.EventSceneRequested, ev.name)
	}
	ev = nextEvent(t, ch)
	if ev.name != string(conversation.EventSceneLoaded) {
		t.Fatalf("Expected %s, got %s", conversation.EventSceneLoaded, ev.name)
	}

	var payload conversation.Event
	require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
	if payload.Phase != conversation.PhaseAwaitingChoice {
		t.Errorf("Expected phase %s, got %s", conversation.PhaseAwaitingChoice, payload.Phase)
	}
	if payload.Key != sessions.StoreKey(s.ID) {
		t.Errorf("Expected key %s, got %s", sessions.StoreKey(s.ID), payload.Key)
	}
}

func TestEventsHandler_UnknownSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ts := newTestServer(t, staticGenerator())
	handler := NewRouter(RouterConfig{
		Manager:    ts.manager,
		Generator:  staticGenerator(),
		Storage:    ts.store,
		Backend:    okBackend{},
		Subscriber: events.NewBroadcaster(client, testLogger()),
		Logger:     testLogger(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/events/sessions/2b7c1b9e-3c55-4d4b-9d0e-8c1f3e4b5a6d", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRouter_NoEventsWithoutSubscriber(t *testing.T) {
	ts := newTestServer(t, staticGenerator())
	w := ts.do(t, http.MethodGet, "/v1/events/sessions/2b7c1b9e-3c55-4d4b-9d0e-8c1f3e4b5a6d", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
