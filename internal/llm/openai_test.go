package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestOpenAIProvider serves handler and hands each decoded request body to
// seen, when non-nil.
func newTestOpenAIProvider(t *testing.T, seen func(map[string]any), handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			body, _ := io.ReadAll(r.Body)
			var decoded map[string]any
			_ = json.Unmarshal(body, &decoded)
			seen(decoded)
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func openAIChoice(message map[string]any, finish string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finish}},
			"usage":   map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	}
}

func openAIError(status int, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": kind, "message": kind},
		})
	}
}

var strictVerdict = &Schema{
	Name:        "cfu-evaluation",
	Description: "verdict",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_correct": map[string]any{"type": "boolean"},
			"feedback":   map[string]any{"type": "string"},
		},
		"required":             []any{"is_correct", "feedback"},
		"additionalProperties": false,
	},
}

func TestOpenAIProvider_Verdict(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	p := newTestOpenAIProvider(t, func(m map[string]any) { bodies <- m },
		openAIChoice(map[string]any{"role": "assistant", "content": `{"is_correct":true,"feedback":"Nice."}`}, "stop"))

	req := gradeRequest()
	req.Schema = strictVerdict
	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 || resp.Usage.TotalTokens != 65 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
	if resp.Model != "gpt-4o-mini-2024-07-18" || resp.StopReason != StopEnd {
		t.Fatalf("Model = %q, StopReason = %q", resp.Model, resp.StopReason)
	}

	sent := <-bodies
	msgs := sent["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Fatalf("messages = %v", msgs)
	}
	if sent["max_completion_tokens"] != float64(defaultMaxTokens) {
		t.Fatalf("max_completion_tokens = %v", sent["max_completion_tokens"])
	}
	format := sent["response_format"].(map[string]any)["json_schema"].(map[string]any)
	if format["strict"] != true || format["name"] != "cfu-evaluation" {
		t.Fatalf("json_schema = %v", format)
	}
}

func TestOpenAIProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name:    "Refusal",
			handler: openAIChoice(map[string]any{"role": "assistant", "refusal": "I can't help with that."}, "stop"),
			check: func(t *testing.T, err error) {
				if !IsInvalidResponse(err) {
					t.Fatalf("expected ErrInvalidResponse, got %T (%v)", err, err)
				}
			},
		},
		{
			name:    "Truncated",
			handler: openAIChoice(map[string]any{"role": "assistant", "content": `{"is_correct":tr`}, "length"),
			check: func(t *testing.T, err error) {
				var maxTok *ErrMaxTokensExceeded
				if !errors.As(err, &maxTok) || string(maxTok.Content) != `{"is_correct":tr` {
					t.Fatalf("expected ErrMaxTokensExceeded with partial content, got %v", err)
				}
			},
		},
		{
			name:    "RateLimited",
			handler: openAIError(http.StatusTooManyRequests, "tokens"),
			check: func(t *testing.T, err error) {
				var rl *ErrRateLimit
				if !errors.As(err, &rl) {
					t.Fatalf("expected ErrRateLimit, got %T (%v)", err, err)
				}
			},
		},
		{
			name:    "ServerError",
			handler: openAIError(http.StatusInternalServerError, "server_error"),
			check: func(t *testing.T, err error) {
				var unavail *ErrProviderUnavailable
				if !errors.As(err, &unavail) {
					t.Fatalf("expected ErrProviderUnavailable, got %T (%v)", err, err)
				}
			},
		},
		{
			name:    "UnknownModel",
			handler: openAIError(http.StatusNotFound, "invalid_request_error"),
			check: func(t *testing.T, err error) {
				var rejected *ErrRequestRejected
				if !errors.As(err, &rejected) {
					t.Fatalf("expected ErrRequestRejected, got %T (%v)", err, err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, nil, tt.handler)
			_, err := p.Generate(context.Background(), gradeRequest())
			tt.check(t, err)
		})
	}
}

func TestStrictCompatible(t *testing.T) {
	open := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
		"required":   []any{"a"},
	}
	optional := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"a": map[string]any{"type": "string"}, "b": map[string]any{"type": "string"}},
		"required":             []any{"a"},
		"additionalProperties": false,
	}
	nestedOpen := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"steps": map[string]any{"type": "array", "items": open}},
		"required":             []any{"steps"},
		"additionalProperties": false,
	}

	tests := []struct {
		name string
		def  map[string]any
		want bool
	}{
		{"Closed", strictVerdict.Definition, true},
		{"AdditionalPropertiesUnset", open, false},
		{"OptionalProperty", optional, false},
		{"OpenItemObject", nestedOpen, false},
		{"Scalar", map[string]any{"type": "string"}, true},
	}
	for _, tt := range tests {
		if got := strictCompatible(tt.def); got != tt.want {
			t.Errorf("%s: strictCompatible = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error without API key")
	}
}
