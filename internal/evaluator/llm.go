package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
)

// LLMConfig holds configuration for the LLM evaluator.
type LLMConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:   512,
		Temperature: 0.2,
	}
}

// LLMEvaluator scores responses with a language model.
type LLMEvaluator struct {
	provider llm.Provider
	cfg      LLMConfig
}

// NewLLMEvaluator creates an LLM-backed evaluator.
func NewLLMEvaluator(provider llm.Provider, cfg LLMConfig) *LLMEvaluator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultLLMConfig().MaxTokens
	}
	return &LLMEvaluator{provider: provider, cfg: cfg}
}

// Evaluate asks the model for a verdict on req.
func (e *LLMEvaluator) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeEvaluate)

	userMsg, err := buildEvaluationMessage(req)
	if err != nil {
		return nil, fmt.Errorf("build evaluation prompt: %w", err)
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: evaluationSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      VerdictSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM evaluation failed: %w", err)
	}

	var v Verdict
	if err := json.Unmarshal(resp.Content, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	return &v, nil
}

const evaluationSystemPrompt = `You are a patient tutor grading a learner's answer to a short check-for-understanding question.

Instructions:
- Judge whether the answer shows the understanding the question is checking for. Ignore spelling and phrasing.
- For multiple-choice questions the selected option has already been resolved for you; grade that choice and write feedback about it.
- When a rubric is given, set partial_credit to the fraction of the rubric the answer satisfies. Otherwise set it to null.
- feedback_text is shown to the learner. Keep it to one or two sentences and do not give away the correct answer.
- Keep reasoning to one sentence.`

var evaluationUserTemplate = template.Must(template.New("evaluation").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Card: {{.Card.Title}}
Explanation given to the learner:
{{.Card.Explanation}}

Question ({{.Card.CFU.Kind}}): {{.Card.CFU.Prompt}}
{{- if .Options}}
Options:
{{range $i, $o := .Options}}{{inc $i}}. {{$o}}
{{end}}
{{- end}}
{{- if .Correct}}
Correct answer: {{.Correct}}
{{- end}}
{{- if .Card.CFU.Rubric}}
Rubric: {{.Card.CFU.Rubric}}
{{- end}}

Learner's answer: {{.Response}}
{{- if .Selected}}
Resolved option: {{.Selected}}
{{- end}}
Attempt {{.Attempt}} of {{.MaxAttempts}}`))

type evaluationPrompt struct {
	Request
	Options  []string
	Correct  string
	Selected string
}

func buildEvaluationMessage(req Request) (string, error) {
	p := evaluationPrompt{Request: req}
	cfu := req.Card.CFU
	switch cfu.Kind {
	case lesson.CFUMultipleChoice:
		p.Options = cfu.Options
		p.Correct = cfu.CorrectOption()
		if req.Choice >= 0 && req.Choice < len(cfu.Options) {
			p.Selected = cfu.Options[req.Choice]
		} else {
			p.Selected = "(none of the options)"
		}
	case lesson.CFUNumeric:
		p.Correct = fmt.Sprintf("%g (tolerance %g)", cfu.Expected, cfu.Tolerance)
	}

	var buf bytes.Buffer
	if err := evaluationUserTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
