// Package llm is the model-provider layer behind the evaluation and
// explanation collaborators.
//
// A Provider turns one Request into structured JSON. Vendor adapters
// (Anthropic, OpenAI, Gemini, OpenRouter) translate to each SDK's native
// structured-output mechanism and validate the reply against the Schema;
// decorators add logging, rate limiting, retries, and a deadline.
package llm

import (
	"context"
	"encoding/json"
)

// defaultMaxTokens applies when a Request leaves MaxTokens unset. A graded
// verdict or worked explanation fits well inside it, and Anthropic rejects
// requests without a limit.
const defaultMaxTokens = 1024

// Normalized Response.StopReason values.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
)

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends req and returns the reply. When req.Schema is set the
	// Content is JSON that has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System sets the model's role and grading constraints.
	System string

	// Messages is the conversation. Evaluation and explanation requests are
	// single-turn and carry one user message.
	Messages []Message

	// Schema is the JSON Schema the reply must conform to. Nil asks for
	// free text, returned verbatim as Content.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the vendor default in place.
	Temperature float64
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies the schema to the vendor and keys the compiled-schema
	// cache. Kebab-case, e.g. "cfu-evaluation".
	Name string

	// Description is sent to the model to guide generation.
	Description string

	// Definition is the JSON Schema document.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is the model that actually served the request, which may be a
	// dated snapshot of the configured alias.
	Model string

	// StopReason is StopEnd or StopMaxTokens.
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// resolveModel maps a friendly model name to a vendor model ID. Unknown
// names pass through so full IDs can be configured directly.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
