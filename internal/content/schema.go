package content

import "github.com/abhisek/lessonloop/internal/llm"

// ExplanationSchema defines the JSON schema for reveal explanations.
var ExplanationSchema = &llm.Schema{
	Name:        "reveal-explanation",
	Description: "A walk-through of the correct approach to a question the learner could not answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{
				"type":        "string",
				"description": "Plain-language explanation of the correct approach (2-4 sentences)",
			},
			"steps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Short numbered steps that lead to the correct answer",
			},
			"answer": map[string]any{
				"type":        "string",
				"description": "The correct answer, stated plainly",
			},
		},
		"required":             []any{"explanation", "steps", "answer"},
		"additionalProperties": false,
	},
}
