package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// ErrSessionNotFound is returned for an unknown or malformed session ID.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long an untouched session stays in memory.
const DefaultIdleTimeout = 30 * time.Minute

// Locker serializes scene fetches for one session across API replicas.
type Locker interface {
	TryLock(ctx context.Context, name string) (func(context.Context) error, error)
}

// ObserverSource hands out a transition observer per session.
type ObserverSource interface {
	ObserverFor(sessionID string) conversation.Observer
}

// Session is one player's conversation machine.
type Session struct {
	ID        string
	Machine   *conversation.Machine
	CreatedAt time.Time

	lastUsed atomic.Int64
}

// LastUsed returns when the session was last looked up.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// Manager is the in-memory registry of live sessions. Evicted sessions are
// rebuilt from the store on their next lookup.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	gen         conversation.Generator
	store       conversation.Store
	observers   ObserverSource
	locker      Locker
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithStore(s conversation.Store) Option {
	return func(m *Manager) { m.store = s }
}

func WithObservers(o ObserverSource) Option {
	return func(m *Manager) { m.observers = o }
}

func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a registry whose sessions draw scenes from gen.
func NewManager(gen conversation.Generator, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		gen:         gen,
		idleTimeout: DefaultIdleTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StoreKey is the progress key for a session.
func StoreKey(id string) string {
	return conversation.DefaultStoreKey + ":" + id
}

func (m *Manager) newSession(id string) *Session {
	gen := m.gen
	if m.locker != nil {
		gen = &lockedGenerator{inner: gen, locker: m.locker, name: id}
	}

	opts := []conversation.Option{
		conversation.WithKey(StoreKey(id)),
		conversation.WithLogger(m.logger.With("session_id", id)),
	}
	if m.store != nil {
		opts = append(opts, conversation.WithStore(m.store))
	}
	if m.observers != nil {
		opts = append(opts, conversation.WithObserver(m.observers.ObserverFor(id)))
	}

	s := &Session{
		ID:        id,
		Machine:   conversation.New(gen, opts...),
		CreatedAt: m.now(),
	}
	s.touch(m.now())
	return s
}

// Create starts a new session at difficulty d (easy when empty). The
// difficulty is saved right away so the session survives a restart.
func (m *Manager) Create(ctx context.Context, d scene.Difficulty) (*Session, error) {
	if d == "" {
		d = scene.DifficultyEasy
	}
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %q", scene.ErrInvalidDifficulty, string(d))
	}

	s := m.newSession(uuid.NewString())
	if _, err := s.Machine.SelectDifficulty(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Session created", "session_id", s.ID, "difficulty", d)
	return s, nil
}

// Get returns a live session, restoring it from the store when it was evicted.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}

	if m.store == nil {
		return nil, ErrSessionNotFound
	}
	p, err := m.store.LoadProgress(ctx, StoreKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if p == nil {
		return nil, ErrSessionNotFound
	}

	restored := m.newSession(id)
	if err := restored.Machine.Restore(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have restored it first.
	if existing, ok := m.sessions[id]; ok {
		existing.touch(m.now())
		return existing, nil
	}
	m.sessions[id] = restored
	m.logger.Info("Session restored", "session_id", id, "score", p.Score, "history", len(p.History))
	return restored, nil
}

// Delete drops a session and its saved progress.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteProgress(ctx, StoreKey(id)); err != nil {
			return fmt.Errorf("failed to delete session progress: %w", err)
		}
	}
	m.logger.Info("Session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than the idle timeout. Sessions with a
// fetch in flight are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) && !s.Machine.Loading() {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("Idle sessions evicted", "count", evicted, "remaining", len(m.sessions))
	}
	return evicted
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := max(m.idleTimeout/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
