package workflow

import (
	"github.com/abhisek/lessonloop/internal/attempt"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
)

// PresentationRequest is emitted to the frontend whenever the session
// suspends on a card. It never carries the correct answer.
type PresentationRequest struct {
	SessionID         string         `json:"session_id"`
	CorrelationID     string         `json:"correlation_id"`
	CardIndex         int            `json:"card_index"`
	TotalCards        int            `json:"total_cards"`
	CFUType           lesson.CFUKind `json:"cfu_type"`
	Card              CardPayload    `json:"card_payload"`
	LessonContext     LessonContext  `json:"lesson_context"`
	Attempt           int            `json:"attempt"`
	AttemptsRemaining int            `json:"attempts_remaining"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"`
}

// CardPayload is the learner-facing part of a card.
type CardPayload struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Explanation      string   `json:"explanation"`
	PlainExplanation string   `json:"plain_explanation,omitempty"`
	Examples         []string `json:"examples,omitempty"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options,omitempty"`
}

// LessonContext locates the card within its lesson.
type LessonContext struct {
	LessonTitle string `json:"lesson_title"`
	Progress    string `json:"progress"`
}

// Present renders the pending request of s, or nil if s is not awaiting a
// response. It is a pure function of the session so a suspended card can
// be redisplayed any number of times.
func Present(s *session.Session) *PresentationRequest {
	if s.Done || s.Stage != session.StageAwaitResponse || s.Pending == nil {
		return nil
	}
	seq := s.Sequencer()
	card, ok := seq.Current()
	if !ok {
		return nil
	}

	p := &PresentationRequest{
		SessionID:     s.ID,
		CorrelationID: s.Pending.CorrelationID,
		CardIndex:     s.Pending.CardIndex,
		TotalCards:    seq.Total(),
		CFUType:       card.CFU.Kind,
		Card: CardPayload{
			ID:               card.ID,
			Title:            card.Title,
			Explanation:      card.Explanation,
			PlainExplanation: card.PlainExplanation,
			Examples:         card.Examples,
			Prompt:           card.CFU.Prompt,
			Options:          card.CFU.Options,
		},
		LessonContext: LessonContext{
			LessonTitle: s.Lesson.Title,
			Progress:    seq.Progress(),
		},
		Attempt:           s.Pending.Attempt,
		AttemptsRemaining: attempt.NewGovernor().Remaining(s),
	}
	if !s.Config.NoTimeout {
		p.TimeoutSeconds = int(s.Config.ResponseTimeout.Seconds())
	}
	return p
}
