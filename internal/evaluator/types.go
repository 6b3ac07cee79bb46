// Package evaluator grades learner responses. Scoring is delegated to a
// collaborator; correctness thresholds and the progression rule stay here.
package evaluator

import (
	"context"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// Request is what a collaborator needs to score one response.
type Request struct {
	Card     lesson.Card
	Response string

	// Choice is the 0-based option the response resolved to for
	// multiple-choice CFUs, or -1 when it matched none.
	Choice int

	Attempt     int
	MaxAttempts int
}

// Verdict is the collaborator's raw assessment.
type Verdict struct {
	IsCorrect     bool     `json:"is_correct"`
	Confidence    float64  `json:"confidence"`
	PartialCredit *float64 `json:"partial_credit,omitempty"`
	FeedbackText  string   `json:"feedback_text"`
	Reasoning     string   `json:"reasoning"`
}

// Evaluator is an evaluation collaborator.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Verdict, error)
}

// Result is the gate's decision for one graded attempt.
type Result struct {
	IsCorrect      bool     `json:"is_correct"`
	Confidence     float64  `json:"confidence"`
	PartialCredit  *float64 `json:"partial_credit,omitempty"`
	FeedbackText   string   `json:"feedback_text"`
	Reasoning      string   `json:"reasoning"`
	ShouldProgress bool     `json:"should_progress"`
}
