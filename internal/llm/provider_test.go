package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestMockProvider_RecordsRequestsAndErrors(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Err: &ErrRateLimit{}},
	)

	resp, err := mock.Generate(context.Background(), gradeRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.TotalTokens != 15 || resp.StopReason != StopEnd {
		t.Fatalf("resp = %+v", resp)
	}

	var rl *ErrRateLimit
	if _, err := mock.Generate(context.Background(), Request{}); !errors.As(err, &rl) {
		t.Fatalf("expected queued ErrRateLimit, got %v", err)
	}

	if mock.CallCount() != 2 || mock.Calls[0].System != "You grade learner responses." {
		t.Fatalf("calls = %d, first system = %q", mock.CallCount(), mock.Calls[0].System)
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("PurposeFrom(empty) = %q, want unknown", p)
	}
	if id := SessionFrom(ctx); id != "" {
		t.Fatalf("SessionFrom(empty) = %q", id)
	}

	ctx = WithSession(WithPurpose(ctx, PurposeEvaluate), "sess-1")
	if p := PurposeFrom(ctx); p != PurposeEvaluate {
		t.Fatalf("PurposeFrom = %q, want %q", p, PurposeEvaluate)
	}
	if id := SessionFrom(ctx); id != "sess-1" {
		t.Fatalf("SessionFrom = %q, want sess-1", id)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"AnthropicWithoutKey", Config{Provider: ProviderAnthropic}, true},
		{"AnthropicWithKey", Config{Provider: ProviderAnthropic, Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"OpenAIWithoutKey", Config{Provider: ProviderOpenAI}, true},
		{"GeminiWithKey", Config{Provider: ProviderGemini, Gemini: GeminiConfig{APIKey: "g"}}, false},
		{"OpenRouterWithoutKey", Config{Provider: ProviderOpenRouter}, true},
		{"MockNeedsNoKey", Config{Provider: ProviderMock}, false},
		{"NegativeRate", Config{Provider: ProviderMock, RequestsPerSecond: -1}, true},
		{"UnknownProvider", Config{Provider: "unknown"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LESSONLOOP_LLM_PROVIDER", "anthropic")
	t.Setenv("LESSONLOOP_ANTHROPIC_API_KEY", "a-key")
	t.Setenv("LESSONLOOP_ANTHROPIC_BASE_URL", "http://gateway.internal")
	t.Setenv("LESSONLOOP_LLM_TIMEOUT", "5s")
	t.Setenv("LESSONLOOP_LLM_RPS", "2.5")

	cfg := ConfigFromEnv()
	if cfg.Provider != ProviderAnthropic || cfg.Anthropic.APIKey != "a-key" {
		t.Errorf("Provider = %q, key = %q", cfg.Provider, cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.BaseURL != "http://gateway.internal" {
		t.Errorf("BaseURL = %q", cfg.Anthropic.BaseURL)
	}
	if cfg.Anthropic.Model != "claude-haiku" {
		t.Errorf("Model = %q, want default claude-haiku", cfg.Anthropic.Model)
	}
	if cfg.Timeout != 5*time.Second || cfg.RequestsPerSecond != 2.5 {
		t.Errorf("Timeout = %s, RPS = %v", cfg.Timeout, cfg.RequestsPerSecond)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfigFromEnv_BadDurationKeepsDefault(t *testing.T) {
	t.Setenv("LESSONLOOP_LLM_TIMEOUT", "soon")
	if cfg := ConfigFromEnv(); cfg.Timeout != DefaultConfig().Timeout {
		t.Fatalf("Timeout = %s", cfg.Timeout)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock}, nil, nil)
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}

	cfg := DefaultConfig()
	cfg.Anthropic.APIKey = "k"
	p, err = NewProvider(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if _, ok := p.(*TimeoutProvider); !ok {
		t.Fatalf("outermost decorator = %T, want *TimeoutProvider", p)
	}
	if p.ModelID() != "claude-haiku-4-5-20251001" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "nope"}, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := NewProvider(context.Background(), Config{Provider: ProviderOpenAI}, nil, nil); err == nil {
		t.Fatal("expected error for openai without key")
	}
}

func TestRejectedRequestIsNotRetried(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRequestRejected{Status: 401, Err: errors.New("bad key")}},
		MockResponse{Content: json.RawMessage(`{}`)},
	)
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})

	var rejected *ErrRequestRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected ErrRequestRejected, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", mock.CallCount())
	}
}
