// Package workflow drives a session through
// design -> await_response -> mark -> progress -> done.
//
// The engine is memoryless between calls. Every operation loads the
// session from the store, works on a clone, and commits the clone with a
// compare-and-swap on the session version. The only suspension point is
// await_response; a session is always persisted there (or at done) before
// control returns to the caller.
package workflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/lessonloop/internal/attempt"
	"github.com/abhisek/lessonloop/internal/content"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
)

var (
	// ErrInvalidInput is returned by Start for a malformed initialization
	// request. Lesson problems wrap lesson.ErrInvalidLesson instead.
	ErrInvalidInput = errors.New("invalid session input")

	// ErrSessionDone is returned when cancelling a session that already
	// reached done.
	ErrSessionDone = errors.New("session already finished")
)

// DefaultConflictRetries bounds how often an operation is replayed after
// losing an optimistic-concurrency race.
const DefaultConflictRetries = 3

// Engine runs sessions. It is safe for concurrent use; calls for the same
// session are serialised by the store's version check.
type Engine struct {
	sessions  store.SessionRepo
	events    store.EventRepo
	evaluator evaluator.Evaluator
	explainer content.Explainer
	governor  attempt.Governor
	defaults  session.Config
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	retries   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents appends evidence and mastery updates to the event log after
// each commit.
func WithEvents(events store.EventRepo) Option {
	return func(e *Engine) { e.events = events }
}

// WithExplainer sets the collaborator used to reveal the correct approach
// after the attempt budget runs out.
func WithExplainer(x content.Explainer) Option {
	return func(e *Engine) { e.explainer = x }
}

// WithSessionDefaults sets the config applied to new sessions.
func WithSessionDefaults(cfg session.Config) Option {
	return func(e *Engine) { e.defaults = cfg.WithDefaults() }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how session ids are minted when Start is
// called without one.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithConflictRetries overrides DefaultConflictRetries.
func WithConflictRetries(n int) Option {
	return func(e *Engine) { e.retries = n }
}

// New creates an engine over the given session store and evaluation
// collaborator.
func New(sessions store.SessionRepo, eval evaluator.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		sessions:  sessions,
		evaluator: eval,
		explainer: content.Static{},
		governor:  attempt.NewGovernor(),
		defaults:  session.DefaultConfig(),
		logger:    observability.Discard(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		retries:   DefaultConflictRetries,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Step is the outcome of one engine call.
type Step struct {
	Session *session.Session `json:"session"`

	// Presentation is set while the session awaits a response.
	Presentation *PresentationRequest `json:"presentation,omitempty"`

	// Feedback is set when this call marked a response.
	Feedback *session.Feedback `json:"feedback,omitempty"`

	// Summary is set once the session is done.
	Summary *session.CompletionSummary `json:"summary,omitempty"`

	// Ignored is set when a delivered response was dropped; the session is
	// returned unchanged.
	Ignored      bool   `json:"ignored,omitempty"`
	IgnoreReason string `json:"ignore_reason,omitempty"`
}

func newStep(s *session.Session) *Step {
	st := &Step{Session: s}
	switch {
	case s.Done:
		st.Summary = session.BuildSummary(s)
	case s.Stage == session.StageAwaitResponse:
		st.Presentation = Present(s)
	}
	return st
}
