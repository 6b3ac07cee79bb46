package session

// CompletionSummary is emitted when a session reaches StageDone.
type CompletionSummary struct {
	SessionID               string          `json:"session_id"`
	EndReason               EndReason       `json:"end_reason"`
	CardsCompleted          int             `json:"cards_completed"`
	TotalCards              int             `json:"total_cards"`
	OverallAccuracy         float64         `json:"overall_accuracy"`
	FirstAttemptSuccessRate float64         `json:"first_attempt_success_rate"`
	AverageAttempts         float64         `json:"average_attempts"`
	RetryRecommended        bool            `json:"retry_recommended"`
	Evidence                []EvidenceEntry `json:"evidence"`
}

// BuildSummary computes the completion summary from the evidence log.
//
//   - OverallAccuracy: correct attempts / graded attempts
//   - FirstAttemptSuccessRate: cards answered correctly on attempt 1 / graded cards
//   - AverageAttempts: graded attempts / graded cards
//   - RetryRecommended: overall accuracy below the pass threshold
func BuildSummary(s *Session) *CompletionSummary {
	sum := &CompletionSummary{
		SessionID:      s.ID,
		EndReason:      s.EndReason,
		CardsCompleted: len(s.CardsCompleted),
		TotalCards:     len(s.Lesson.Cards),
		Evidence:       append([]EvidenceEntry{}, s.Evidence...),
	}

	if len(s.Evidence) == 0 {
		sum.RetryRecommended = s.EndReason != EndCompleted || len(s.SkippedCards) > 0
		return sum
	}

	var correct int
	cards := make(map[string]bool)
	firstTry := make(map[string]bool)
	for _, e := range s.Evidence {
		if e.IsCorrect {
			correct++
		}
		cards[e.CardID] = true
		if e.Attempt == 1 && e.IsCorrect {
			firstTry[e.CardID] = true
		}
	}

	sum.OverallAccuracy = float64(correct) / float64(len(s.Evidence))
	sum.FirstAttemptSuccessRate = float64(len(firstTry)) / float64(len(cards))
	sum.AverageAttempts = float64(len(s.Evidence)) / float64(len(cards))

	threshold := s.Config.PassThreshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	sum.RetryRecommended = sum.OverallAccuracy < threshold
	return sum
}
