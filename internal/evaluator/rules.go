package evaluator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// RuleEvaluator grades responses deterministically without a model.
// Free-text answers are scored by how many rubric keywords they mention.
type RuleEvaluator struct{}

// NewRuleEvaluator returns a rule-based evaluator.
func NewRuleEvaluator() *RuleEvaluator { return &RuleEvaluator{} }

// Evaluate implements Evaluator.
func (RuleEvaluator) Evaluate(_ context.Context, req Request) (*Verdict, error) {
	cfu := req.Card.CFU
	switch cfu.Kind {
	case lesson.CFUMultipleChoice:
		return evaluateChoice(req), nil
	case lesson.CFUNumeric:
		return evaluateNumeric(req), nil
	case lesson.CFUText:
		return evaluateText(req), nil
	default:
		return nil, fmt.Errorf("%w: unsupported CFU kind %q", ErrMalformedVerdict, cfu.Kind)
	}
}

func evaluateChoice(req Request) *Verdict {
	if req.Choice < 0 {
		return &Verdict{
			Confidence:   1,
			FeedbackText: "That doesn't match any of the options. Answer with the option number or its text.",
			Reasoning:    "response did not resolve to an option",
		}
	}
	if req.Choice == req.Card.CFU.CorrectIndex {
		return &Verdict{
			IsCorrect:    true,
			Confidence:   1,
			FeedbackText: "Correct!",
			Reasoning:    "selected the correct option",
		}
	}
	return &Verdict{
		Confidence:   1,
		FeedbackText: "Not quite. Have another look at the explanation.",
		Reasoning:    fmt.Sprintf("selected option %d", req.Choice+1),
	}
}

func evaluateNumeric(req Request) *Verdict {
	v, err := lesson.ParseNumber(req.Response)
	if err != nil {
		return &Verdict{
			Confidence:   1,
			FeedbackText: "I couldn't read a number in that answer.",
			Reasoning:    err.Error(),
		}
	}
	if lesson.WithinTolerance(v, req.Card.CFU) {
		return &Verdict{
			IsCorrect:    true,
			Confidence:   1,
			FeedbackText: "Correct!",
			Reasoning:    "value within tolerance",
		}
	}
	return &Verdict{
		Confidence:   1,
		FeedbackText: "Not quite. Check your working and try again.",
		Reasoning:    fmt.Sprintf("%g is outside tolerance", v),
	}
}

func evaluateText(req Request) *Verdict {
	answer := keywordSet(req.Response)
	if len(answer) == 0 {
		zero := 0.0
		return &Verdict{
			Confidence:    1,
			PartialCredit: &zero,
			FeedbackText:  "Try writing a sentence or two in your own words.",
			Reasoning:     "empty answer",
		}
	}

	rubric := keywords(req.Card.CFU.Rubric)
	if len(rubric) == 0 {
		// Nothing to check against; accept any substantive answer.
		return &Verdict{
			IsCorrect:    true,
			Confidence:   0.3,
			FeedbackText: "Thanks, that's a reasonable answer.",
			Reasoning:    "no rubric keywords to compare",
		}
	}

	hit := 0
	for _, k := range rubric {
		if answer[k] {
			hit++
		}
	}
	credit := float64(hit) / float64(len(rubric))

	v := &Verdict{
		IsCorrect:     hit == len(rubric),
		Confidence:    0.6,
		PartialCredit: &credit,
		Reasoning:     fmt.Sprintf("mentions %d of %d rubric keywords", hit, len(rubric)),
	}
	switch {
	case hit == len(rubric):
		v.FeedbackText = "Great explanation!"
	case hit > 0:
		v.FeedbackText = "You're on the right track. Can you say a bit more?"
	default:
		v.FeedbackText = "Not quite. Re-read the explanation and try again."
	}
	return v
}

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "because": true, "been": true,
	"being": true, "does": true, "each": true, "from": true, "have": true,
	"into": true, "more": true, "most": true, "must": true, "only": true,
	"other": true, "should": true, "some": true, "such": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "very": true,
	"were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "will": true, "with": true, "would": true, "your": true,
	"answer": true, "mention": true, "mentions": true, "explain": true, "explains": true,
}

// keywords returns the distinct significant words of s in order of first
// appearance. Words shorter than four letters and stopwords are dropped.
func keywords(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func keywordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, k := range keywords(s) {
		set[k] = true
	}
	return set
}
