package session

import (
	"testing"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
)

func testLesson() lesson.Lesson {
	return lesson.Lesson{
		ID:          "l1",
		Title:       "Place Value",
		OutcomeRefs: []string{"o1"},
		Cards: []lesson.Card{
			{ID: "c1", CFU: lesson.CFU{ID: "q1", Kind: lesson.CFUMultipleChoice, Options: []string{"10", "100"}, CorrectIndex: 1}},
			{ID: "c2", CFU: lesson.CFU{ID: "q2", Kind: lesson.CFUNumeric, Expected: 40}},
		},
	}
}

func testSession() *Session {
	return New("s1", "stu1", testLesson(), Config{}, time.Unix(1700000000, 0).UTC())
}

func TestNew_Defaults(t *testing.T) {
	s := testSession()
	if s.Stage != StageDesign {
		t.Errorf("Stage = %s, want design", s.Stage)
	}
	if s.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", s.MaxAttempts, DefaultMaxAttempts)
	}
	if s.Config.PassThreshold != DefaultPassThreshold {
		t.Errorf("PassThreshold = %v, want %v", s.Config.PassThreshold, DefaultPassThreshold)
	}
	if s.Config.Scores != DefaultMasteryScores() {
		t.Errorf("Scores = %+v, want defaults", s.Config.Scores)
	}
	if err := CheckInvariants(s); err != nil {
		t.Errorf("fresh session violates invariants: %v", err)
	}
}

func TestConfig_CustomMaxAttempts(t *testing.T) {
	s := New("s1", "stu1", testLesson(), Config{MaxAttempts: 5}, time.Now())
	if s.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", s.MaxAttempts)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.PassThreshold = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for threshold > 1")
	}

	bad = DefaultConfig()
	bad.Scores.Retry = -0.1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative score")
	}
}

func TestConfig_Expired(t *testing.T) {
	cfg := DefaultConfig()
	issued := time.Unix(0, 0)
	if cfg.Expired(issued, issued.Add(299*time.Second)) {
		t.Error("should not expire before timeout")
	}
	if !cfg.Expired(issued, issued.Add(301*time.Second)) {
		t.Error("should expire after timeout")
	}
	cfg.NoTimeout = true
	if cfg.Expired(issued, issued.Add(24*time.Hour)) {
		t.Error("NoTimeout should disable expiry")
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := testSession()
	s.Pending = &PendingRequest{CorrelationID: "x", CardIndex: 0}
	s.Inbox["x"] = Response{CorrelationID: "x"}
	s.Evidence = append(s.Evidence, EvidenceEntry{CardID: "c1"})

	c := s.Clone()
	c.Pending.CorrelationID = "y"
	c.Inbox["z"] = Response{}
	c.Evidence[0].CardID = "changed"
	c.Lesson.Cards[0].CFU.Options[0] = "changed"
	c.CardsCompleted = append(c.CardsCompleted, "c1")

	if s.Pending.CorrelationID != "x" {
		t.Error("clone shares pending request")
	}
	if _, ok := s.Inbox["z"]; ok {
		t.Error("clone shares inbox")
	}
	if s.Evidence[0].CardID != "c1" {
		t.Error("clone shares evidence")
	}
	if s.Lesson.Cards[0].CFU.Options[0] != "10" {
		t.Error("clone shares lesson options")
	}
	if len(s.CardsCompleted) != 0 {
		t.Error("clone shares completed list")
	}
}

func TestFinish_KeepsFirstReason(t *testing.T) {
	s := testSession()
	now := time.Now()
	s.Finish(EndCancelled, now)
	s.Finish(EndCompleted, now)
	if s.EndReason != EndCancelled {
		t.Errorf("EndReason = %s, want cancelled", s.EndReason)
	}
	if !s.Done || s.Stage != StageDone {
		t.Error("expected terminal state")
	}
}

func TestResponse_Normalize(t *testing.T) {
	tests := []struct {
		in   Response
		want Action
	}{
		{Response{Action: ActionSubmit, ResponseText: "2"}, ActionSubmit},
		{Response{Action: ActionSkip, ResponseText: "2"}, ActionSubmit},
		{Response{Action: "next", ResponseText: "hello"}, ActionSubmit},
		{Response{Action: ActionSkip}, ActionSkip},
		{Response{ResponseText: " "}, ActionSkip},
		{Response{ResponseText: "4"}, ActionSubmit},
	}
	for _, tc := range tests {
		if got := tc.in.Normalize().Action; got != tc.want {
			t.Errorf("Normalize(%+v).Action = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Session)
	}{
		{"completed exceeds index", func(s *Session) { s.CardsCompleted = []string{"c1"} }},
		{"duplicate completion", func(s *Session) {
			s.CurrentCardIndex = 2
			s.CardsCompleted = []string{"c1", "c1"}
		}},
		{"awaiting without pending", func(s *Session) { s.Stage = StageAwaitResponse }},
		{"pending outside await", func(s *Session) { s.Pending = &PendingRequest{} }},
		{"attempts over budget", func(s *Session) { s.Attempts = 4 }},
		{"done without flag", func(s *Session) { s.Stage = StageDone }},
	}
	for _, tc := range tests {
		s := testSession()
		tc.mutate(s)
		if err := CheckInvariants(s); err == nil {
			t.Errorf("%s: expected invariant violation", tc.name)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	prev := testSession()
	prev.CurrentCardIndex = 1
	prev.Attempts = 2

	next := prev.Clone()
	next.CurrentCardIndex = 0
	if err := CheckTransition(prev, next); err == nil {
		t.Error("expected error when index decreases")
	}

	next = prev.Clone()
	next.CurrentCardIndex = 2
	if err := CheckTransition(prev, next); err == nil {
		t.Error("expected error when attempts not reset on advance")
	}

	next.Attempts = 0
	if err := CheckTransition(prev, next); err != nil {
		t.Errorf("valid advance rejected: %v", err)
	}
}
