// Package mastery turns graded attempts into raw per-outcome score events.
// It keeps no running state; aggregation belongs to whoever consumes the
// events.
package mastery

import (
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
)

// Tracker scores graded attempts.
type Tracker struct {
	scores session.MasteryScores
}

// NewTracker returns a tracker using the given score buckets. A zero value
// falls back to the defaults.
func NewTracker(scores session.MasteryScores) *Tracker {
	if scores == (session.MasteryScores{}) {
		scores = session.DefaultMasteryScores()
	}
	return &Tracker{scores: scores}
}

// Score returns the bucket for one graded attempt. attempt is 1-based.
func (t *Tracker) Score(correct bool, attempt int) float64 {
	switch {
	case !correct:
		return t.scores.Incorrect
	case attempt <= 1:
		return t.scores.FirstTry
	default:
		return t.scores.Retry
	}
}

// Updates returns one update per outcome the attempt on card counts
// towards, all carrying the same score and timestamp.
func (t *Tracker) Updates(l *lesson.Lesson, card lesson.Card, correct bool, attempt int, now time.Time) []session.MasteryUpdate {
	outcomes := l.OutcomesFor(card)
	if len(outcomes) == 0 {
		return nil
	}
	score := t.Score(correct, attempt)
	out := make([]session.MasteryUpdate, 0, len(outcomes))
	for _, id := range outcomes {
		out = append(out, session.MasteryUpdate{
			OutcomeID: id,
			CardID:    card.ID,
			Score:     score,
			Timestamp: now,
		})
	}
	return out
}
