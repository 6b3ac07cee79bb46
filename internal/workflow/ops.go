package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/lessonloop/internal/correlation"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
)

// StartInput is the session initialization request from the owning
// application.
type StartInput struct {
	SessionID string        `json:"session_id,omitempty"`
	StudentID string        `json:"student_id"`
	Lesson    lesson.Lesson `json:"lesson"`

	// MaxAttempts overrides the engine default when positive.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Config, when set, replaces the engine's session defaults.
	Config *session.Config `json:"config,omitempty"`
}

// Ignore reasons reported in Step.IgnoreReason.
const (
	IgnoreSessionDone         = "session_done"
	IgnoreCorrelationMismatch = "correlation_mismatch"
	IgnoreExpired             = "expired"
)

func (e *Engine) span(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	ctx = llm.WithSession(ctx, sessionID)
	return observability.Tracer().Start(ctx, name, trace.WithAttributes(attribute.String("session.id", sessionID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Start validates the input, creates the session and runs it to its first
// suspension. Configuration errors fail before anything is stored.
func (e *Engine) Start(ctx context.Context, in StartInput) (step *Step, err error) {
	if err := lesson.Validate(&in.Lesson); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.StudentID) == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrInvalidInput)
	}

	cfg := e.defaults
	if in.Config != nil {
		cfg = in.Config.WithDefaults()
	}
	if in.MaxAttempts > 0 {
		cfg.MaxAttempts = in.MaxAttempts
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	id := in.SessionID
	if id == "" {
		id = e.newID()
	}
	ctx, span := e.span(ctx, "workflow.start", id)
	defer func() { endSpan(span, err) }()

	s := session.New(id, in.StudentID, in.Lesson, cfg, e.now())
	r := e.newRun(s)
	if err := r.step(ctx); err != nil {
		return nil, err
	}
	if err := session.CheckInvariants(s); err != nil {
		return nil, fmt.Errorf("start session %s: %w", id, err)
	}
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	e.emit(r)
	r.log.Info("session started", "student_id", s.StudentID, "lesson_id", s.Lesson.ID, "cards", len(s.Lesson.Cards))
	return newStep(s), nil
}

// Deliver records a learner response and resumes the session. Responses
// for finished sessions, for a request that is no longer pending, or that
// arrive after the pending request expired are dropped and reported via
// Step.Ignored.
func (e *Engine) Deliver(ctx context.Context, sessionID string, resp session.Response) (step *Step, err error) {
	ctx, span := e.span(ctx, "workflow.deliver", sessionID)
	defer func() { endSpan(span, err) }()

	resp = resp.Normalize()
	// Arrival time is ours to decide; a caller-supplied value is discarded.
	resp.ReceivedAt = e.now()
	log := e.logger.With("session_id", sessionID, "correlation_id", resp.CorrelationID)

	ignored, err := e.retryConflicts(func() (*Step, error) {
		s, err := e.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		switch {
		case s.Done:
			log.Info("response for finished session, ignoring", "end_reason", s.EndReason)
			return e.ignore(s, IgnoreSessionDone), nil
		case !correlation.Matches(s, resp.CorrelationID):
			log.Warn("response does not match pending request, ignoring")
			return e.ignore(s, IgnoreCorrelationMismatch), nil
		}

		c := s.Clone()
		if s.Config.Expired(s.Pending.IssuedAt, resp.ReceivedAt) {
			r := e.newRun(c)
			r.finish(session.EndExpired)
			if err := e.commit(ctx, s, r); err != nil {
				return nil, err
			}
			st := newStep(c)
			st.Ignored, st.IgnoreReason = true, IgnoreExpired
			observability.RecordIgnored(IgnoreExpired)
			return st, nil
		}

		if !correlation.Record(c, resp) {
			log.Debug("duplicate delivery, first response kept")
			return nil, nil
		}
		c.UpdatedAt = e.now()
		if err := e.sessions.Update(ctx, c); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil || ignored != nil {
		return ignored, err
	}
	return e.Resume(ctx, sessionID)
}

func (e *Engine) ignore(s *session.Session, reason string) *Step {
	observability.RecordIgnored(reason)
	st := newStep(s)
	st.Ignored, st.IgnoreReason = true, reason
	return st
}

// Resume reloads the session and, if a response to the pending request has
// arrived, marks it and runs to the next suspension. With nothing to do it
// returns the stored session without writing anything, so replays are
// idempotent. An expired pending request finishes the session.
//
// Evaluation failures are returned as *evaluator.RetryableError with the
// stored session untouched.
func (e *Engine) Resume(ctx context.Context, sessionID string) (step *Step, err error) {
	ctx, span := e.span(ctx, "workflow.resume", sessionID)
	defer func() { endSpan(span, err) }()

	return e.retryConflicts(func() (*Step, error) {
		s, err := e.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.Done {
			return newStep(s), nil
		}

		if s.Stage == session.StageAwaitResponse {
			if _, ok := correlation.Lookup(s); !ok {
				if s.Pending != nil && s.Config.Expired(s.Pending.IssuedAt, e.now()) {
					return e.expire(ctx, s)
				}
				return newStep(s), nil
			}
		}

		c := s.Clone()
		r := e.newRun(c)
		if err := r.step(ctx); err != nil {
			r.log.Warn("resume failed, session left unchanged", "error", err)
			return nil, err
		}
		if err := e.commit(ctx, s, r); err != nil {
			return nil, err
		}
		st := newStep(c)
		st.Feedback = r.feedback
		return st, nil
	})
}

// Cancel finishes the session. Late responses are then ignored.
func (e *Engine) Cancel(ctx context.Context, sessionID string) (step *Step, err error) {
	ctx, span := e.span(ctx, "workflow.cancel", sessionID)
	defer func() { endSpan(span, err) }()

	return e.retryConflicts(func() (*Step, error) {
		s, err := e.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.Done {
			return nil, fmt.Errorf("cancel %s: %w", sessionID, ErrSessionDone)
		}
		c := s.Clone()
		r := e.newRun(c)
		r.finish(session.EndCancelled)
		if err := e.commit(ctx, s, r); err != nil {
			return nil, err
		}
		r.log.Info("session cancelled")
		return newStep(c), nil
	})
}

// ExpireStale finishes every awaiting session whose pending request is
// older than its response timeout, and returns how many it expired.
// Failures on one session are logged and do not stop the sweep.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	ids, err := e.sessions.ListAwaiting(ctx)
	if err != nil {
		return 0, fmt.Errorf("list awaiting sessions: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		st, err := e.retryConflicts(func() (*Step, error) {
			s, err := e.load(ctx, id)
			if err != nil {
				return nil, err
			}
			if s.Done || s.Pending == nil || !s.Config.Expired(s.Pending.IssuedAt, e.now()) {
				return nil, nil
			}
			if _, ok := correlation.Lookup(s); ok {
				// Delivered in time but not yet marked; leave it for Resume.
				return nil, nil
			}
			return e.expire(ctx, s)
		})
		if err != nil {
			e.logger.Warn("expire session failed", "session_id", id, "error", err)
			continue
		}
		if st != nil {
			expired++
		}
	}
	return expired, nil
}

func (e *Engine) expire(ctx context.Context, s *session.Session) (*Step, error) {
	c := s.Clone()
	r := e.newRun(c)
	r.finish(session.EndExpired)
	if err := e.commit(ctx, s, r); err != nil {
		return nil, err
	}
	r.log.Info("pending request expired", "card_index", s.CurrentCardIndex)
	return newStep(c), nil
}

// Get returns the stored session without running it.
func (e *Engine) Get(ctx context.Context, sessionID string) (*Step, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return newStep(s), nil
}

func (e *Engine) load(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrCorrupted) {
			e.logger.Error("persisted session is corrupted", "session_id", id, "error", err)
		}
		return nil, err
	}
	if s.Pending != nil && !correlation.New(s.ID).Verify(s.Pending) {
		err := fmt.Errorf("session %q: %w: pending correlation id %q was not issued for card %d attempt %d",
			id, store.ErrCorrupted, s.Pending.CorrelationID, s.Pending.CardIndex, s.Pending.Attempt)
		e.logger.Error("persisted session is corrupted", "session_id", id, "error", err)
		return nil, err
	}
	return s, nil
}
