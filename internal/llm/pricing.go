package llm

import (
	"sort"
	"strings"
)

// ModelCost is USD pricing per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of one call.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model, or nil if unknown. Friendly
// names ("claude-haiku"), dated snapshots ("claude-haiku-4-5-20251001") and
// OpenRouter ids ("openai/gpt-4o-mini") resolve to their base entry.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if _, rest, ok := strings.Cut(id, "/"); ok {
		id = rest
	}
	for _, aliases := range []map[string]string{anthropicModels, openaiModels, geminiModels} {
		if resolved, ok := aliases[id]; ok {
			id = resolved
		}
	}

	if c, ok := modelCosts[id]; ok {
		return &c
	}
	// Longest prefix wins so "gpt-4o-mini-2024-07-18" prices as
	// gpt-4o-mini rather than gpt-4o.
	for _, base := range costPrefixes {
		if strings.HasPrefix(id, base+"-") {
			c := modelCosts[base]
			return &c
		}
	}
	return nil
}

var costPrefixes = func() []string {
	keys := make([]string, 0, len(modelCosts))
	for k := range modelCosts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// modelCosts covers the models the providers resolve to by default and
// their common alternatives for grading work. Prices from models.dev,
// 2026-02.
var modelCosts = map[string]ModelCost{
	// Anthropic
	"claude-3-5-haiku":  {0.8, 4},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-sonnet-4-5": {3, 15},
	"claude-opus-4-5":   {5, 25},

	// OpenAI
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},
	"o4-mini":      {1.1, 4.4},

	// Google
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.0-flash-exp":  {0.1, 0.4},
	"gemini-2.0-pro":        {1.25, 10},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}
