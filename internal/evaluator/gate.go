package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
)

// Gate wraps an evaluation collaborator with the code-owned grading rules:
//
//   - multiple-choice correctness is decided by resolving the response
//     against the stored correct index, never by the collaborator
//   - when a verdict carries partial credit, correctness is
//     partial_credit >= pass threshold
//   - should_progress = is_correct || attempt >= max_attempts
type Gate struct {
	evaluator Evaluator
	threshold float64
	now       func() time.Time
}

// NewGate returns a gate using passThreshold for partial credit.
func NewGate(e Evaluator, passThreshold float64) *Gate {
	if passThreshold <= 0 {
		passThreshold = session.DefaultPassThreshold
	}
	return &Gate{evaluator: e, threshold: passThreshold, now: time.Now}
}

// WithClock overrides the timestamp source for evidence entries.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Evaluate grades one response and returns the result along with the
// single evidence entry the caller must append. On any collaborator
// failure it returns a *RetryableError and no evidence.
func (g *Gate) Evaluate(ctx context.Context, response string, card lesson.Card, attempt, maxAttempts int) (*Result, session.EvidenceEntry, error) {
	req := Request{
		Card:        card,
		Response:    response,
		Choice:      -1,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}
	if card.CFU.Kind == lesson.CFUMultipleChoice {
		if idx, ok := lesson.ResolveChoice(response, card.CFU); ok {
			req.Choice = idx
		}
	}

	v, err := g.evaluator.Evaluate(ctx, req)
	if err != nil {
		return nil, session.EvidenceEntry{}, &RetryableError{Op: "evaluate response", Err: err}
	}
	if err := checkVerdict(v); err != nil {
		return nil, session.EvidenceEntry{}, &RetryableError{Op: "evaluate response", Err: err}
	}

	res := &Result{
		IsCorrect:     v.IsCorrect,
		Confidence:    v.Confidence,
		PartialCredit: v.PartialCredit,
		FeedbackText:  v.FeedbackText,
		Reasoning:     v.Reasoning,
	}

	switch {
	case card.CFU.Kind == lesson.CFUMultipleChoice:
		res.IsCorrect = req.Choice == card.CFU.CorrectIndex
	case v.PartialCredit != nil:
		res.IsCorrect = *v.PartialCredit >= g.threshold
	}
	res.ShouldProgress = res.IsCorrect || attempt >= maxAttempts

	entry := session.EvidenceEntry{
		Timestamp:          g.now().UTC(),
		CardID:             card.ID,
		CFUID:              card.CFU.ID,
		Response:           response,
		IsCorrect:          res.IsCorrect,
		Confidence:         res.Confidence,
		PartialCredit:      res.PartialCredit,
		Attempt:            attempt,
		MaxAttemptsReached: attempt >= maxAttempts,
	}
	return res, entry, nil
}

func checkVerdict(v *Verdict) error {
	if v == nil {
		return fmt.Errorf("%w: empty verdict", ErrMalformedVerdict)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrMalformedVerdict, v.Confidence)
	}
	if v.PartialCredit != nil && (*v.PartialCredit < 0 || *v.PartialCredit > 1) {
		return fmt.Errorf("%w: partial credit %v outside [0, 1]", ErrMalformedVerdict, *v.PartialCredit)
	}
	return nil
}
