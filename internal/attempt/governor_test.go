package attempt

import (
	"testing"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/session"
)

func newSession(max int) *session.Session {
	l := lesson.Lesson{ID: "l", Cards: []lesson.Card{{ID: "c1"}}}
	cfg := session.DefaultConfig()
	cfg.MaxAttempts = max
	return session.New("s", "stu", l, cfg, time.Now())
}

func TestGovernor_BudgetExhaustion(t *testing.T) {
	g := NewGovernor()
	s := newSession(3)

	for i := 1; i <= 2; i++ {
		if n := g.Mark(s); n != i {
			t.Fatalf("Mark() = %d, want %d", n, i)
		}
		if g.Settle(s, false) {
			t.Fatalf("attempt %d: Settle(false) advanced before budget was spent", i)
		}
		if s.RevealRequested {
			t.Fatalf("attempt %d: reveal requested early", i)
		}
	}
	if got := g.Remaining(s); got != 1 {
		t.Errorf("Remaining() = %d, want 1", got)
	}

	g.Mark(s)
	if !g.Exhausted(s) {
		t.Error("Exhausted() = false after 3 attempts")
	}
	if !g.Settle(s, false) {
		t.Error("Settle(false) on last attempt should advance")
	}
	if !s.RevealRequested {
		t.Error("RevealRequested = false after exhausting budget")
	}
	if got := g.Remaining(s); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}

	g.Reset(s)
	if s.Attempts != 0 || s.RevealRequested {
		t.Errorf("after Reset: Attempts=%d RevealRequested=%v", s.Attempts, s.RevealRequested)
	}
}

func TestGovernor_CorrectAdvancesWithoutReveal(t *testing.T) {
	g := NewGovernor()
	s := newSession(3)

	g.Mark(s)
	if !g.Settle(s, true) {
		t.Error("Settle(true) should advance")
	}
	if s.RevealRequested {
		t.Error("correct answer should not request a reveal")
	}
}

func TestGovernor_SingleAttempt(t *testing.T) {
	g := NewGovernor()
	s := newSession(1)

	g.Mark(s)
	if !g.Settle(s, false) || !s.RevealRequested {
		t.Error("single-attempt budget should advance and reveal after one wrong answer")
	}
}
