package evaluator

import (
	"testing"

	"github.com/abhisek/lessonloop/internal/lesson"
)

func TestRuleEvaluator_Choice(t *testing.T) {
	e := NewRuleEvaluator()
	card := mcqCard()

	tests := []struct {
		choice int
		want   bool
	}{
		{0, true},
		{1, false},
		{-1, false},
	}
	for _, tt := range tests {
		v, err := e.Evaluate(t.Context(), Request{Card: card, Choice: tt.choice})
		if err != nil {
			t.Fatalf("choice %d: %v", tt.choice, err)
		}
		if v.IsCorrect != tt.want {
			t.Errorf("choice %d: IsCorrect = %v, want %v", tt.choice, v.IsCorrect, tt.want)
		}
		if v.Confidence != 1 {
			t.Errorf("choice %d: Confidence = %v, want 1", tt.choice, v.Confidence)
		}
	}
}

func TestRuleEvaluator_Numeric(t *testing.T) {
	e := NewRuleEvaluator()
	card := lesson.Card{ID: "n", CFU: lesson.CFU{ID: "q", Kind: lesson.CFUNumeric, Expected: 0.75, Tolerance: 0.01}}

	tests := []struct {
		resp string
		want bool
	}{
		{"0.75", true},
		{"3/4", true},
		{"0.755", true},
		{"0.8", false},
		{"seventy", false},
	}
	for _, tt := range tests {
		v, err := e.Evaluate(t.Context(), Request{Card: card, Response: tt.resp, Choice: -1})
		if err != nil {
			t.Fatalf("%q: %v", tt.resp, err)
		}
		if v.IsCorrect != tt.want {
			t.Errorf("%q: IsCorrect = %v, want %v", tt.resp, v.IsCorrect, tt.want)
		}
	}
}

func TestRuleEvaluator_TextRubricCoverage(t *testing.T) {
	e := NewRuleEvaluator()
	card := textCard()

	tests := []struct {
		resp        string
		wantCredit  float64
		wantCorrect bool
	}{
		{"In winter there is less sunlight so chlorophyll breaks down", 1, true},
		{"Less SUNLIGHT in Winter", 2.0 / 3.0, false},
		{"because they are tired", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		v, err := e.Evaluate(t.Context(), Request{Card: card, Response: tt.resp, Choice: -1})
		if err != nil {
			t.Fatalf("%q: %v", tt.resp, err)
		}
		if v.PartialCredit == nil {
			t.Fatalf("%q: PartialCredit = nil", tt.resp)
		}
		if diff := *v.PartialCredit - tt.wantCredit; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%q: PartialCredit = %v, want %v", tt.resp, *v.PartialCredit, tt.wantCredit)
		}
		if v.IsCorrect != tt.wantCorrect {
			t.Errorf("%q: IsCorrect = %v, want %v", tt.resp, v.IsCorrect, tt.wantCorrect)
		}
	}
}

func TestRuleEvaluator_TextWithoutRubric(t *testing.T) {
	card := lesson.Card{ID: "t", CFU: lesson.CFU{ID: "q", Kind: lesson.CFUText}}
	v, err := NewRuleEvaluator().Evaluate(t.Context(), Request{Card: card, Response: "photosynthesis stops", Choice: -1})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsCorrect || v.PartialCredit != nil {
		t.Errorf("got IsCorrect=%v PartialCredit=%v, want true and nil", v.IsCorrect, v.PartialCredit)
	}
}

func TestRuleEvaluator_PartialCreditThroughGate(t *testing.T) {
	g := NewGate(NewRuleEvaluator(), 0.6)
	res, _, err := g.Evaluate(t.Context(), "Less sunlight in winter", textCard(), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsCorrect {
		t.Error("2/3 rubric coverage should pass a 0.6 threshold")
	}
}

func TestKeywords(t *testing.T) {
	got := keywords("The sunlight, the SUNLIGHT and chlorophyll; with a cat.")
	want := []string{"sunlight", "chlorophyll"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keywords[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
