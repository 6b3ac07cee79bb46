// Package content produces the "here is the correct approach" explanation
// shown when a learner runs out of attempts on a card.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
)

// Input describes the card the learner could not answer.
type Input struct {
	Card     lesson.Card
	Attempts []string
}

// Explanation is the generated reveal.
type Explanation struct {
	Text   string   `json:"explanation"`
	Steps  []string `json:"steps"`
	Answer string   `json:"answer"`
}

// String renders the explanation as learner-facing text.
func (e *Explanation) String() string {
	var b strings.Builder
	b.WriteString(e.Text)
	for i, s := range e.Steps {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, s))
	}
	if e.Answer != "" {
		b.WriteString("\nAnswer: " + e.Answer)
	}
	return b.String()
}

// Explainer produces reveal explanations.
type Explainer interface {
	Explain(ctx context.Context, in Input) (*Explanation, error)
}

// Generator explains with a language model.
type Generator struct {
	provider llm.Provider
	cfg      Config
}

// NewGenerator creates an LLM-backed explainer.
func NewGenerator(provider llm.Provider, cfg Config) *Generator {
	return &Generator{provider: provider, cfg: cfg}
}

// Explain implements Explainer.
func (g *Generator) Explain(ctx context.Context, in Input) (*Explanation, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeExplain)

	resp, err := g.provider.Generate(ctx, llm.Request{
		System: explainSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildExplainUserMessage(in)},
		},
		Schema:      ExplanationSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("explanation generation: %w", err)
	}

	var out Explanation
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse explanation response: %w", err)
	}
	return &out, nil
}

// Static builds the reveal from the card itself.
type Static struct{}

// Explain implements Explainer. It never fails.
func (Static) Explain(_ context.Context, in Input) (*Explanation, error) {
	return Fallback(in.Card), nil
}

// Fallback is the reveal used when no generator is configured or the
// generator fails.
func Fallback(card lesson.Card) *Explanation {
	text := card.PlainExplanation
	if text == "" {
		text = card.Explanation
	}
	e := &Explanation{Text: text}
	switch card.CFU.Kind {
	case lesson.CFUMultipleChoice:
		e.Answer = card.CFU.CorrectOption()
	case lesson.CFUNumeric:
		e.Answer = fmt.Sprintf("%g", card.CFU.Expected)
	case lesson.CFUText:
		e.Answer = card.CFU.Rubric
	}
	return e
}
