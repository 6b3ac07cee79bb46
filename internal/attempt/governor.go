// Package attempt bounds how many times a learner may answer the current
// card before the session moves on.
package attempt

import "github.com/abhisek/lessonloop/internal/session"

// Governor applies the per-card attempt budget to a session.
type Governor struct{}

// NewGovernor returns a governor.
func NewGovernor() Governor { return Governor{} }

// Mark records that a response for the current card is being graded and
// returns the 1-based attempt number it counts as.
func (Governor) Mark(s *session.Session) int {
	s.Attempts++
	return s.Attempts
}

// Settle applies a graded outcome. It reports whether the session should
// advance, and requests a reveal when the budget ran out on a wrong answer.
func (g Governor) Settle(s *session.Session, correct bool) bool {
	if correct {
		return true
	}
	if g.Exhausted(s) {
		s.RevealRequested = true
		return true
	}
	return false
}

// Reset clears the per-card counters after the session advances.
func (Governor) Reset(s *session.Session) {
	s.Attempts = 0
	s.RevealRequested = false
}

// Exhausted reports whether the current card has used all its attempts.
func (Governor) Exhausted(s *session.Session) bool {
	return s.Attempts >= s.MaxAttempts
}

// Remaining returns how many attempts the current card has left.
func (Governor) Remaining(s *session.Session) int {
	if r := s.MaxAttempts - s.Attempts; r > 0 {
		return r
	}
	return 0
}
