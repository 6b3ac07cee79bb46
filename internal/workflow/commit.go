package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
)

// retryConflicts replays op while it loses optimistic-concurrency races.
func (e *Engine) retryConflicts(op func() (*Step, error)) (*Step, error) {
	for i := 0; ; i++ {
		st, err := op()
		if err == nil || !errors.Is(err, store.ErrConflict) || i >= e.retries {
			return st, err
		}
		observability.RecordConflict()
		e.logger.Debug("session modified concurrently, retrying", "attempt", i+1)
	}
}

// commit checks the working copy against the loaded original and writes it.
// A working copy that breaks an invariant is never stored; the original is
// failed instead so the fault stays contained to this session.
func (e *Engine) commit(ctx context.Context, orig *session.Session, r *run) error {
	next := r.s
	verr := session.CheckInvariants(next)
	if verr == nil {
		verr = session.CheckTransition(orig, next)
	}
	if verr != nil {
		r.log.Error("invariant violated, failing session", "error", verr)
		failed := orig.Clone()
		failed.Error = verr.Error()
		fr := e.newRun(failed)
		fr.finish(session.EndFailed)
		if err := e.sessions.Update(ctx, failed); err != nil {
			return fmt.Errorf("fail session %s: %w", orig.ID, err)
		}
		e.emit(fr)
		return fmt.Errorf("session %s: %w", orig.ID, verr)
	}

	if err := e.sessions.Update(ctx, next); err != nil {
		return err
	}
	e.emit(r)
	e.appendEvents(ctx, orig, next)
	return nil
}

// emit publishes metrics for a committed run.
func (e *Engine) emit(r *run) {
	for _, t := range r.trail {
		observability.RecordTransition(string(t.from), string(t.to))
	}
	if r.s.Done && len(r.trail) > 0 && r.trail[len(r.trail)-1].to == session.StageDone {
		observability.RecordFinished(string(r.s.EndReason))
	}
}

// appendEvents mirrors newly committed evidence and mastery updates into the
// event log. The session snapshot is the source of truth, so failures are
// only logged.
func (e *Engine) appendEvents(ctx context.Context, orig, next *session.Session) {
	if e.events == nil {
		return
	}
	for _, ev := range next.Evidence[len(orig.Evidence):] {
		err := e.events.AppendEvidence(ctx, store.EvidenceEventData{
			SessionID: next.ID,
			StudentID: next.StudentID,
			LessonID:  next.Lesson.ID,
			Entry:     ev,
		})
		if err != nil {
			e.logger.Warn("append evidence event failed", "session_id", next.ID, "error", err)
		}
	}
	for _, up := range next.MasteryUpdates[len(orig.MasteryUpdates):] {
		err := e.events.AppendMastery(ctx, store.MasteryEventData{
			SessionID: next.ID,
			StudentID: next.StudentID,
			LessonID:  next.Lesson.ID,
			Update:    up,
		})
		if err != nil {
			e.logger.Warn("append mastery event failed", "session_id", next.ID, "error", err)
		}
	}
}
