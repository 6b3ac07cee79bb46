package session

import "fmt"

// CheckInvariants verifies the structural invariants that must hold at every
// durable checkpoint.
func CheckInvariants(s *Session) error {
	if s.CurrentCardIndex < 0 {
		return fmt.Errorf("current card index %d is negative", s.CurrentCardIndex)
	}
	if len(s.CardsCompleted) > s.CurrentCardIndex {
		return fmt.Errorf("%d cards completed but current index is %d", len(s.CardsCompleted), s.CurrentCardIndex)
	}

	seen := make(map[string]bool, len(s.CardsCompleted))
	for _, id := range s.CardsCompleted {
		if seen[id] {
			return fmt.Errorf("card %q completed twice", id)
		}
		seen[id] = true
	}

	if s.Attempts < 0 || (s.MaxAttempts > 0 && s.Attempts > s.MaxAttempts) {
		return fmt.Errorf("attempts %d outside [0, %d]", s.Attempts, s.MaxAttempts)
	}

	switch s.Stage {
	case StageAwaitResponse:
		if s.Pending == nil {
			return fmt.Errorf("awaiting a response without a pending request")
		}
		if s.Pending.CardIndex != s.CurrentCardIndex {
			return fmt.Errorf("pending request for card %d but current card is %d", s.Pending.CardIndex, s.CurrentCardIndex)
		}
	case StageDone:
		if !s.Done {
			return fmt.Errorf("stage done without terminal flag")
		}
		if s.Pending != nil {
			return fmt.Errorf("terminal session still has a pending request")
		}
	default:
		if s.Pending != nil {
			return fmt.Errorf("pending request outside await_response (stage %s)", s.Stage)
		}
	}
	return nil
}

// CheckTransition verifies the monotonic-progress invariants between two
// consecutive checkpoints of the same session.
func CheckTransition(prev, next *Session) error {
	if next.CurrentCardIndex < prev.CurrentCardIndex {
		return fmt.Errorf("card index went backwards: %d -> %d", prev.CurrentCardIndex, next.CurrentCardIndex)
	}
	if next.CurrentCardIndex > prev.CurrentCardIndex && next.Attempts != 0 {
		return fmt.Errorf("attempts %d not reset after advancing to card %d", next.Attempts, next.CurrentCardIndex)
	}
	if len(next.Evidence) < len(prev.Evidence) {
		return fmt.Errorf("evidence shrank: %d -> %d", len(prev.Evidence), len(next.Evidence))
	}
	if len(next.MasteryUpdates) < len(prev.MasteryUpdates) {
		return fmt.Errorf("mastery updates shrank: %d -> %d", len(prev.MasteryUpdates), len(next.MasteryUpdates))
	}
	if prev.Done && !next.Done {
		return fmt.Errorf("terminal session was reopened")
	}
	return nil
}
