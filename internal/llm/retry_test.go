package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

var verdictJSON = json.RawMessage(`{"is_correct":true,"confidence":0.9,"partial_credit":null,"feedback_text":"Nice.","reasoning":"matches"}`)

func down() MockResponse {
	return MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("503")}}
}

func malformed() MockResponse {
	return MockResponse{Err: &ErrInvalidResponse{Content: json.RawMessage(`{"is_correct":"yes"}`), Err: errors.New("schema")}}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		responses []MockResponse
		wantErr   bool
		wantCalls int
	}{
		{"FirstAttempt", []MockResponse{{Content: verdictJSON}}, false, 1},
		{"UnavailableThenVerdict", []MockResponse{down(), {Content: verdictJSON}}, false, 2},
		{"RateLimitedThenVerdict", []MockResponse{
			{Err: &ErrRateLimit{RetryAfter: time.Millisecond, Err: errors.New("429")}},
			{Content: verdictJSON},
		}, false, 2},
		{"NetworkErrorThenVerdict", []MockResponse{{Err: errors.New("connection reset")}, {Content: verdictJSON}}, false, 2},
		{"Exhausted", []MockResponse{down(), down(), down()}, true, 3},
		{"MaxTokensNotRetried", []MockResponse{{Err: &ErrMaxTokensExceeded{Content: json.RawMessage(`{"feedback_text":"Goo`)}}}, true, 1},
		{"MalformedRetriedOnce", []MockResponse{malformed(), malformed(), {Content: verdictJSON}}, true, 2},
		{"MalformedThenVerdict", []MockResponse{malformed(), {Content: verdictJSON}}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.responses...)
			p := WithRetry(mock, fastRetry())

			resp, err := p.Generate(context.Background(), Request{Schema: &Schema{Name: "verdict"}})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if string(resp.Content) != string(verdictJSON) {
					t.Fatalf("content = %s", resp.Content)
				}
			}
			if mock.CallCount() != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", mock.CallCount(), tt.wantCalls)
			}
		})
	}
}

func TestRetry_MaxTokensSurfacesTypedError(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrMaxTokensExceeded{Content: json.RawMessage(`{}`)}})
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})

	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T", err)
	}
}

func TestRetry_CanceledContext(t *testing.T) {
	mock := NewMockProvider(down(), down(), MockResponse{Content: verdictJSON})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(mock, fastRetry()).Generate(ctx, Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.CallCount() > 1 {
		t.Fatalf("calls = %d, want at most 1", mock.CallCount())
	}
}

func TestRetry_SkipsWaitPastDeadline(t *testing.T) {
	cfg := fastRetry()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour
	mock := NewMockProvider(down(), MockResponse{Content: verdictJSON})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	_, err := WithRetry(mock, cfg).Generate(ctx, Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected the provider error back, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", mock.CallCount())
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("retry slept past the caller's deadline")
	}
}

func TestBackoff(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: time.Second, Multiplier: 2}}

	tests := []struct {
		name     string
		attempt  int
		err      error
		min, max time.Duration
	}{
		{"First", 0, errors.New("x"), 80 * time.Millisecond, 120 * time.Millisecond},
		{"Third", 2, errors.New("x"), 320 * time.Millisecond, 480 * time.Millisecond},
		{"Capped", 10, errors.New("x"), 800 * time.Millisecond, 1200 * time.Millisecond},
		{"RetryAfter", 0, &ErrRateLimit{RetryAfter: 700 * time.Millisecond}, 700 * time.Millisecond, 700 * time.Millisecond},
		{"RetryAfterCapped", 0, &ErrRateLimit{RetryAfter: time.Minute}, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.backoff(tt.attempt, tt.err)
			if got < tt.min || got > tt.max {
				t.Fatalf("backoff = %s, want within [%s, %s]", got, tt.min, tt.max)
			}
		})
	}
}

func TestRetry_ModelIDDelegates(t *testing.T) {
	p := WithRetry(NewMockProvider(), fastRetry())
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q, want mock", p.ModelID())
	}
}

func TestWithTimeout(t *testing.T) {
	mock := NewMockProvider()
	if WithTimeout(mock, 0) != Provider(mock) {
		t.Fatal("zero timeout should return the provider unchanged")
	}

	p := WithTimeout(deadlineProbe{}, time.Minute)
	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Content) != "true" {
		t.Fatal("inner provider saw no deadline")
	}
}

type deadlineProbe struct{}

func (deadlineProbe) Generate(ctx context.Context, _ Request) (*Response, error) {
	_, ok := ctx.Deadline()
	return &Response{Content: json.RawMessage(boolJSON(ok))}, nil
}

func (deadlineProbe) ModelID() string { return "probe" }

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
