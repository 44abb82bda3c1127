package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

const (
	recentTitleLimit  = 5
	persistTimeout    = 5 * time.Second
	defaultDifficulty = scene.DifficultyEasy
)

// State is a read-only copy of a session.
type State struct {
	Phase               Phase            `json:"phase"`
	CurrentScene        *scene.Scene     `json:"currentScene"`
	CurrentStep         int              `json:"currentStep"`
	MaxSteps            int              `json:"maxSteps"`
	SelectedChoice      *scene.Choice    `json:"selectedChoice"`
	ShowExplanation     bool             `json:"showExplanation"`
	ConversationOutcome scene.Outcome    `json:"conversationOutcome"`
	Score               int              `json:"score"`
	History             []scene.Scene    `json:"history"`
	Difficulty          scene.Difficulty `json:"difficulty"`
	Loading             bool             `json:"loading"`
}

// Machine sequences scene fetches, choices, scoring and round progression
// for one session. All methods are safe for concurrent use; at most one
// scene fetch runs at a time.
type Machine struct {
	mu       sync.Mutex
	gen      Generator
	store    Store
	key      string
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	phase           Phase
	resumePhase     Phase
	currentScene    *scene.Scene
	currentStep     int
	selectedChoice  *scene.Choice
	showExplanation bool
	outcome         scene.Outcome
	score           int
	history         []scene.Scene
	difficulty      scene.Difficulty
	loading         bool

	// carried across the rounds of one conversation
	conversation []scene.DialogLine
	steps        []scene.StepHistory

	// epoch changes whenever a conversation is abandoned, so a fetch that
	// started before the change can tell its result is stale.
	epoch uint64

	version      uint64
	saveMu       sync.Mutex
	savedVersion uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithStore persists progress through s.
func WithStore(s Store) Option {
	return func(m *Machine) { m.store = s }
}

// WithKey sets the persistence key.
func WithKey(key string) Option {
	return func(m *Machine) { m.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates an idle session at the easy tier.
func New(gen Generator, opts ...Option) *Machine {
	m := &Machine{
		gen:         gen,
		key:         DefaultStoreKey,
		logger:      slog.Default(),
		now:         time.Now,
		phase:       PhaseIdle,
		currentStep: 1,
		difficulty:  defaultDifficulty,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pending is work collected under the lock and carried out after it is released.
type pending struct {
	events   []Event
	progress *Progress
	version  uint64
}

// Restore loads persisted history, score and difficulty. Missing progress
// leaves the defaults in place.
func (m *Machine) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	p, err := m.store.LoadProgress(ctx, m.key)
	if err != nil {
		return fmt.Errorf("failed to restore progress: %w", err)
	}
	if p == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]scene.Scene{}, p.History...)
	m.score = max(p.Score, 0)
	if p.Difficulty.Valid() {
		m.difficulty = p.Difficulty
	}
	m.startConversationLocked()
	m.phase = PhaseIdle
	m.logger.Debug("Progress restored", "key", m.key, "score", m.score, "history", len(m.history))
	return nil
}

// SelectDifficulty switches tier and starts a fresh conversation. Score and
// history are kept. A fetch still in flight becomes stale and keeps the
// session loading until it returns.
func (m *Machine) SelectDifficulty(ctx context.Context, d scene.Difficulty) (Phase, error) {
	if !d.Valid() {
		return m.Phase(), fmt.Errorf("%w: %q", scene.ErrInvalidDifficulty, string(d))
	}

	m.mu.Lock()
	m.difficulty = d
	m.startConversationLocked()
	m.epoch++
	m.phase = PhaseIdle
	work := m.pendingLocked(true, EventDifficultySelected)
	m.mu.Unlock()

	m.finish(ctx, work)
	return PhaseIdle, nil
}

// RequestScene fetches content for the current step. It blocks until the
// generator returns.
func (m *Machine) RequestScene(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	if m.loading {
		phase := m.phase
		m.mu.Unlock()
		return phase, ErrFetchInFlight
	}
	if !m.phase.canRequest() {
		phase := m.phase
		m.mu.Unlock()
		return phase, ErrConversationInProgress
	}
	return m.fetchLocked(ctx, pending{})
}

// SelectChoice records the player's choice for the current round and scores
// it. On the terminal round it also decides the conversation outcome.
func (m *Machine) SelectChoice(ctx context.Context, label string) (Phase, error) {
	m.mu.Lock()
	if err := m.choiceGuardLocked(); err != nil {
		phase := m.phase
		m.mu.Unlock()
		return phase, err
	}
	choice, ok := m.currentScene.ChoiceByLabel(label)
	if !ok {
		phase := m.phase
		m.mu.Unlock()
		return phase, fmt.Errorf("%w: %q", ErrUnknownChoice, label)
	}

	m.selectedChoice = &choice
	m.showExplanation = true
	if choice.IsCorrect {
		m.score++
	}

	events := []EventType{EventChoiceSelected}
	if m.currentStep >= m.maxStepsLocked() {
		m.outcome = scene.OutcomeLose
		if choice.IsCorrect {
			m.outcome = scene.OutcomeWin
		}
		m.currentScene.Outcome = m.outcome
		m.phase = PhaseConversationResolved
		events = append(events, EventConversationResolved)
	} else {
		m.phase = PhaseChoiceMade
	}
	phase := m.phase
	work := m.pendingLocked(true, events...)
	m.mu.Unlock()

	m.finish(ctx, work)
	return phase, nil
}

func (m *Machine) choiceGuardLocked() error {
	switch {
	case m.loading:
		return ErrFetchInFlight
	case m.currentScene == nil:
		return ErrNoScene
	case m.selectedChoice != nil:
		return ErrChoiceAlreadySelected
	case m.phase != PhaseAwaitingChoice:
		// The previous round was archived and its successor is not loaded.
		return ErrNoScene
	}
	return nil
}

// ShowExplanation reveals the explanation for the selected choice.
func (m *Machine) ShowExplanation() (Phase, error) {
	return m.setExplanation(true)
}

// HideExplanation hides the explanation again.
func (m *Machine) HideExplanation() (Phase, error) {
	return m.setExplanation(false)
}

func (m *Machine) setExplanation(visible bool) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedChoice == nil {
		return m.phase, ErrNoChoiceSelected
	}
	m.showExplanation = visible
	return m.phase, nil
}

// AdvanceStep archives the current intermediate round into the carried
// conversation and step history, then fetches the next round.
func (m *Machine) AdvanceStep(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	var err error
	switch {
	case m.loading:
		err = ErrFetchInFlight
	case m.selectedChoice == nil:
		err = ErrNoChoiceSelected
	case m.outcome != scene.OutcomeNone || m.currentStep >= m.maxStepsLocked():
		err = ErrTerminalRound
	}
	if err != nil {
		phase := m.phase
		m.mu.Unlock()
		return phase, err
	}

	m.conversation = append(m.conversation, m.currentScene.Dialog...)
	m.steps = append(m.steps, scene.StepHistory{
		Choice:      m.selectedChoice.Text,
		Explanation: m.currentScene.Explanation,
		NextSceneID: m.selectedChoice.NextSceneID,
	})
	m.currentScene.ConversationHistory = append([]scene.DialogLine{}, m.conversation...)
	m.currentScene.StepHistory = append([]scene.StepHistory{}, m.steps...)
	m.currentStep++
	m.selectedChoice = nil
	m.showExplanation = false
	m.phase = PhaseRoundAdvancing

	return m.fetchLocked(ctx, m.pendingLocked(false, EventStepAdvanced))
}

// ProceedToNextConversation archives the resolved conversation into history
// and starts a new one at the same tier.
func (m *Machine) ProceedToNextConversation(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	if m.loading {
		phase := m.phase
		m.mu.Unlock()
		return phase, ErrFetchInFlight
	}
	if m.phase != PhaseConversationResolved || m.currentScene == nil {
		phase := m.phase
		m.mu.Unlock()
		return phase, ErrConversationNotResolved
	}

	m.history = append(m.history, *m.currentScene.Clone())
	m.startConversationLocked()
	m.phase = PhaseIdle

	return m.fetchLocked(ctx, m.pendingLocked(true, EventConversationArchived))
}

// ResetSession wipes everything except the difficulty.
func (m *Machine) ResetSession(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	m.startConversationLocked()
	m.history = nil
	m.score = 0
	m.epoch++
	m.phase = PhaseIdle
	work := m.pendingLocked(true, EventSessionReset)
	m.mu.Unlock()

	m.finish(ctx, work)
	return PhaseIdle, nil
}

// fetchLocked runs the generator for the current step. It must be called
// with m.mu held and returns with it released.
func (m *Machine) fetchLocked(ctx context.Context, work pending) (Phase, error) {
	req := m.requestLocked()
	epoch := m.epoch
	m.resumePhase = m.phase
	m.phase = PhaseLoading
	m.loading = true
	work.events = append(work.events, m.eventLocked(EventSceneRequested))
	m.mu.Unlock()

	m.finish(ctx, work)

	raw, genErr := m.gen.GenerateScene(ctx, req)

	m.mu.Lock()
	if epoch != m.epoch {
		// The abandoned call has returned; only now may a new fetch start.
		m.loading = false
		phase := m.phase
		m.mu.Unlock()
		m.logger.Warn("Discarding stale scene", "key", m.key, "step", req.Step)
		return phase, ErrStaleScene
	}
	m.loading = false

	if genErr != nil {
		m.phase = m.resumePhase
		ev := m.eventLocked(EventSceneFailed)
		ev.Error = genErr.Error()
		phase := m.phase
		m.mu.Unlock()

		m.logger.Error("Failed to generate scene",
			"key", m.key,
			"difficulty", req.Difficulty,
			"step", req.Step,
			"error", genErr)
		m.emit(ctx, ev)
		return phase, &GenerationError{Step: req.Step, Err: genErr}
	}

	sc := scene.Parse(raw)
	sc.ConversationHistory = append([]scene.DialogLine{}, m.conversation...)
	sc.StepHistory = append([]scene.StepHistory{}, m.steps...)
	sc.Outcome = scene.OutcomeNone
	m.currentScene = &sc
	m.selectedChoice = nil
	m.showExplanation = false
	m.phase = PhaseAwaitingChoice
	ev := m.eventLocked(EventSceneLoaded)
	m.mu.Unlock()

	m.logger.Debug("Scene loaded",
		"key", m.key,
		"scene_id", sc.ID,
		"step", req.Step,
		"choices", len(sc.Choices))
	m.emit(ctx, ev)
	return PhaseAwaitingChoice, nil
}

func (m *Machine) requestLocked() scene.Request {
	req := scene.Request{
		Difficulty: m.difficulty,
		Step:       m.currentStep,
		MaxSteps:   m.maxStepsLocked(),
	}
	if m.currentStep > 1 {
		req.ConversationHistory = append([]scene.DialogLine{}, m.conversation...)
		req.StepHistory = append([]scene.StepHistory{}, m.steps...)
	}
	for i := len(m.history) - 1; i >= 0 && len(req.RecentTitles) < recentTitleLimit; i-- {
		req.RecentTitles = append(req.RecentTitles, m.history[i].SceneTitle)
	}
	return req
}

// startConversationLocked clears all per-conversation state.
func (m *Machine) startConversationLocked() {
	m.currentScene = nil
	m.currentStep = 1
	m.selectedChoice = nil
	m.showExplanation = false
	m.outcome = scene.OutcomeNone
	m.conversation = nil
	m.steps = nil
}

func (m *Machine) maxStepsLocked() int {
	return m.difficulty.MaxSteps()
}

func (m *Machine) eventLocked(t EventType) Event {
	return Event{
		Type:       t,
		Key:        m.key,
		Phase:      m.phase,
		Step:       m.currentStep,
		Score:      m.score,
		Difficulty: m.difficulty,
		Outcome:    m.outcome,
		At:         m.now(),
	}
}

func (m *Machine) pendingLocked(persist bool, types ...EventType) pending {
	var work pending
	for _, t := range types {
		work.events = append(work.events, m.eventLocked(t))
	}
	if persist {
		m.version++
		work.version = m.version
		work.progress = &Progress{
			History:    append([]scene.Scene{}, m.history...),
			Score:      m.score,
			Difficulty: m.difficulty,
		}
	}
	return work
}

// finish persists and emits work collected under the lock.
func (m *Machine) finish(ctx context.Context, work pending) {
	if work.progress != nil {
		m.persist(ctx, work.progress, work.version)
	}
	for _, ev := range work.events {
		m.emit(ctx, ev)
	}
}

// persist saves progress, skipping snapshots older than one already written.
// Failures are logged; the transition stands.
func (m *Machine) persist(ctx context.Context, p *Progress, version uint64) {
	if m.store == nil {
		return
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if version <= m.savedVersion {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.SaveProgress(saveCtx, m.key, p); err != nil {
		m.logger.Warn("Failed to persist progress", "key", m.key, "error", err)
		return
	}
	m.savedVersion = version
}

func (m *Machine) emit(ctx context.Context, ev Event) {
	if m.observer != nil {
		m.observer(ctx, ev)
	}
}

// State returns a deep copy of the whole session.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		Phase:               m.phase,
		CurrentScene:        m.currentScene.Clone(),
		CurrentStep:         m.currentStep,
		MaxSteps:            m.maxStepsLocked(),
		ShowExplanation:     m.showExplanation,
		ConversationOutcome: m.outcome,
		Score:               m.score,
		History:             cloneScenes(m.history),
		Difficulty:          m.difficulty,
		Loading:             m.loading,
	}
	if m.selectedChoice != nil {
		c := *m.selectedChoice
		st.SelectedChoice = &c
	}
	return st
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) CurrentScene() *scene.Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentScene.Clone()
}

func (m *Machine) CurrentStep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentStep
}

func (m *Machine) SelectedChoice() *scene.Choice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedChoice == nil {
		return nil
	}
	c := *m.selectedChoice
	return &c
}

func (m *Machine) ExplanationVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showExplanation
}

func (m *Machine) ConversationOutcome() scene.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

func (m *Machine) Score() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score
}

func (m *Machine) History() []scene.Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneScenes(m.history)
}

func (m *Machine) Difficulty() scene.Difficulty {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.difficulty
}

func (m *Machine) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Key returns the persistence key.
func (m *Machine) Key() string {
	return m.key
}

func cloneScenes(in []scene.Scene) []scene.Scene {
	out := make([]scene.Scene, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
