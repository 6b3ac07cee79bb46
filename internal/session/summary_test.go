package session

import "testing"

func TestBuildSummary(t *testing.T) {
	s := testSession()
	s.Evidence = []EvidenceEntry{
		{CardID: "c1", Attempt: 1, IsCorrect: true},
		{CardID: "c2", Attempt: 1, IsCorrect: false},
		{CardID: "c2", Attempt: 2, IsCorrect: true},
	}
	s.CurrentCardIndex = 2
	s.CardsCompleted = []string{"c1", "c2"}
	s.EndReason = EndCompleted

	sum := BuildSummary(s)

	if got, want := sum.OverallAccuracy, 2.0/3.0; got != want {
		t.Errorf("OverallAccuracy = %v, want %v", got, want)
	}
	if sum.FirstAttemptSuccessRate != 0.5 {
		t.Errorf("FirstAttemptSuccessRate = %v, want 0.5", sum.FirstAttemptSuccessRate)
	}
	if sum.AverageAttempts != 1.5 {
		t.Errorf("AverageAttempts = %v, want 1.5", sum.AverageAttempts)
	}
	if sum.RetryRecommended {
		t.Error("accuracy 0.67 >= 0.6 should not recommend retry")
	}
	if len(sum.Evidence) != 3 {
		t.Errorf("Evidence len = %d, want 3", len(sum.Evidence))
	}
	if sum.CardsCompleted != 2 || sum.TotalCards != 2 {
		t.Errorf("cards = %d/%d, want 2/2", sum.CardsCompleted, sum.TotalCards)
	}
}

func TestBuildSummary_RetryRecommended(t *testing.T) {
	s := testSession()
	s.Evidence = []EvidenceEntry{
		{CardID: "c1", Attempt: 1},
		{CardID: "c1", Attempt: 2},
		{CardID: "c1", Attempt: 3, MaxAttemptsReached: true},
	}
	sum := BuildSummary(s)
	if !sum.RetryRecommended {
		t.Error("expected retry recommendation at 0% accuracy")
	}
	if sum.AverageAttempts != 3 {
		t.Errorf("AverageAttempts = %v, want 3", sum.AverageAttempts)
	}
}

func TestBuildSummary_NoEvidence(t *testing.T) {
	s := testSession()
	s.EndReason = EndCancelled
	sum := BuildSummary(s)
	if sum.OverallAccuracy != 0 || sum.AverageAttempts != 0 {
		t.Errorf("unexpected non-zero metrics: %+v", sum)
	}
	if !sum.RetryRecommended {
		t.Error("cancelled session without evidence should recommend retry")
	}
}
