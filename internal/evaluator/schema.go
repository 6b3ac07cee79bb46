package evaluator

import "github.com/abhisek/lessonloop/internal/llm"

// VerdictSchema defines the JSON schema for CFU evaluation responses.
var VerdictSchema = &llm.Schema{
	Name:        "cfu-evaluation",
	Description: "Assessment of a learner's answer to a check-for-understanding question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_correct": map[string]any{
				"type":        "boolean",
				"description": "Whether the answer demonstrates the understanding the question checks for",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "Confidence in the judgement (0.0-1.0)",
			},
			"partial_credit": map[string]any{
				"type":        []any{"number", "null"},
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "Fraction of the rubric satisfied, or null when the answer is all-or-nothing",
			},
			"feedback_text": map[string]any{
				"type":        "string",
				"description": "One or two encouraging sentences addressed to the learner. Do not reveal the answer.",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief one-sentence justification for the grade",
			},
		},
		"required":             []any{"is_correct", "confidence", "partial_credit", "feedback_text", "reasoning"},
		"additionalProperties": false,
	},
}
