package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/lessonloop/internal/content"
	"github.com/abhisek/lessonloop/internal/correlation"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/mastery"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
)

type transition struct {
	from, to session.Stage
}

// run holds the in-memory progress of one engine call over a working copy.
type run struct {
	e        *Engine
	s        *session.Session
	log      *slog.Logger
	trail    []transition
	feedback *session.Feedback

	// response is the matched delivery carried from await_response into mark.
	response session.Response
}

func (e *Engine) newRun(s *session.Session) *run {
	return &run{e: e, s: s, log: e.logger.With("session_id", s.ID)}
}

func (r *run) enter(to session.Stage) {
	r.trail = append(r.trail, transition{from: r.s.Stage, to: to})
	r.s.Stage = to
	r.s.UpdatedAt = r.e.now()
}

func (r *run) finish(reason session.EndReason) {
	from := r.s.Stage
	r.s.Finish(reason, r.e.now())
	r.trail = append(r.trail, transition{from: from, to: session.StageDone})
}

// step advances the working copy until it suspends or finishes. A returned
// error means the working copy must be discarded.
func (r *run) step(ctx context.Context) error {
	for {
		switch r.s.Stage {
		case session.StageDesign:
			r.design()
		case session.StageAwaitResponse:
			if !r.await() {
				return nil
			}
		case session.StageMark:
			if err := r.mark(ctx); err != nil {
				return err
			}
		case session.StageProgress:
			r.progress(ctx)
		case session.StageDone:
			return nil
		default:
			return fmt.Errorf("unknown stage %q", r.s.Stage)
		}
	}
}

// design presents the current card, or finishes the session once the
// lesson is exhausted.
func (r *run) design() {
	seq := r.s.Sequencer()
	card, ok := seq.Current()
	if !ok {
		r.finish(session.EndCompleted)
		r.log.Info("session completed", "cards_completed", len(r.s.CardsCompleted))
		return
	}

	attemptNo := r.s.Attempts + 1
	r.s.Pending = &session.PendingRequest{
		CorrelationID: correlation.New(r.s.ID).Register(seq.Index(), attemptNo),
		CardID:        card.ID,
		CardIndex:     seq.Index(),
		Attempt:       attemptNo,
		IssuedAt:      r.e.now(),
	}
	r.enter(session.StageAwaitResponse)
	r.log.Debug("card presented", "card_id", card.ID, "progress", seq.Progress(), "attempt", attemptNo)
}

// await checks for a response to the pending request. It reports false
// when the session must stay suspended.
func (r *run) await() bool {
	resp, ok := correlation.Lookup(r.s)
	if !ok {
		return false
	}
	r.response = resp
	correlation.Consume(r.s, resp.CorrelationID)
	r.s.Pending = nil
	r.enter(session.StageMark)
	return true
}

func (r *run) mark(ctx context.Context) error {
	card, ok := r.s.CurrentCard()
	if !ok {
		return fmt.Errorf("mark: no card at index %d", r.s.CurrentCardIndex)
	}

	if r.response.IsSkip() {
		r.s.SkippedCards = append(r.s.SkippedCards, card.ID)
		r.feedback = &session.Feedback{
			CardID:         card.ID,
			Attempt:        r.s.Attempts,
			ShouldProgress: true,
			Skipped:        true,
			Text:           "Skipped.",
		}
		r.s.LastFeedback = r.feedback
		r.log.Info("card skipped", "card_id", card.ID)
		r.enter(session.StageProgress)
		return nil
	}

	attemptNo := r.e.governor.Mark(r.s)
	gate := evaluator.NewGate(r.e.evaluator, r.s.Config.PassThreshold).WithClock(r.e.now)

	ctx, span := observability.Tracer().Start(ctx, "workflow.mark", trace.WithAttributes(
		attribute.String("card.id", card.ID),
		attribute.Int("attempt", attemptNo),
	))
	start := time.Now()
	res, entry, err := gate.Evaluate(ctx, r.response.ResponseText, card, attemptNo, r.s.MaxAttempts)
	span.End()
	if err != nil {
		observability.RecordEvaluation("error", time.Since(start))
		return err
	}
	outcome := "incorrect"
	if res.IsCorrect {
		outcome = "correct"
	}
	observability.RecordEvaluation(outcome, time.Since(start))

	r.s.Evidence = append(r.s.Evidence, entry)
	tracker := mastery.NewTracker(r.s.Config.Scores)
	r.s.MasteryUpdates = append(r.s.MasteryUpdates,
		tracker.Updates(&r.s.Lesson, card, res.IsCorrect, attemptNo, entry.Timestamp)...)

	advance := r.e.governor.Settle(r.s, res.IsCorrect)
	if advance != res.ShouldProgress {
		r.log.Warn("evaluator progression disagrees with attempt budget, following budget",
			"card_id", card.ID, "attempt", attemptNo, "should_progress", res.ShouldProgress)
	}
	r.feedback = &session.Feedback{
		CardID:         card.ID,
		Attempt:        attemptNo,
		IsCorrect:      res.IsCorrect,
		ShouldProgress: advance,
		Text:           res.FeedbackText,
		Reasoning:      res.Reasoning,
	}
	r.s.LastFeedback = r.feedback
	r.log.Info("response marked",
		"card_id", card.ID,
		"attempt", attemptNo,
		"correct", res.IsCorrect,
		"should_progress", advance)

	if advance {
		r.enter(session.StageProgress)
	} else {
		r.enter(session.StageDesign)
	}
	return nil
}

// progress moves to the next card, first asking for a reveal explanation
// when the attempt budget ran out on a wrong answer.
func (r *run) progress(ctx context.Context) {
	if r.s.RevealRequested {
		r.reveal(ctx)
	}
	idx, completed := r.s.Sequencer().Advance(r.s.CardsCompleted)
	r.s.CurrentCardIndex = idx
	r.s.CardsCompleted = completed
	r.e.governor.Reset(r.s)
	r.enter(session.StageDesign)
}

// reveal is best effort: a failing explainer degrades to the card's own
// explanation.
func (r *run) reveal(ctx context.Context) {
	card, ok := r.s.CurrentCard()
	if !ok {
		return
	}
	in := content.Input{Card: card}
	for _, ev := range r.s.Evidence {
		if ev.CardID == card.ID {
			in.Attempts = append(in.Attempts, ev.Response)
		}
	}

	exp, err := r.e.explainer.Explain(ctx, in)
	if err != nil {
		r.log.Warn("reveal explanation failed, using card content", "card_id", card.ID, "error", err)
		exp = content.Fallback(card)
	}
	if r.s.LastFeedback != nil {
		r.s.LastFeedback.Explanation = exp.String()
	}
}
