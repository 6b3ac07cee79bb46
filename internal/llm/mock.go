package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider. Queued responses are served
// first in FIFO order; after that, a per-purpose fallback answers if one is
// set, otherwise the call fails with ErrProviderUnavailable.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	fallback  map[string]MockResponse

	// Calls and Purposes record every request and the purpose label found
	// in its context, in call order.
	Calls    []Request
	Purposes []string
}

// NewMockProvider creates a MockProvider with the given queued responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses, fallback: map[string]MockResponse{}}
}

// NewOfflineProvider returns a mock that answers evaluation and explanation
// requests with neutral output, so the engine can run without credentials.
// Evaluations are never graded correct.
func NewOfflineProvider() *MockProvider {
	return NewMockProvider().
		WithFallback(PurposeEvaluate, MockResponse{Content: json.RawMessage(
			`{"is_correct":false,"confidence":0,"partial_credit":null,` +
				`"feedback_text":"Your answer was recorded. Grading is offline right now.","reasoning":"offline provider"}`)}).
		WithFallback(PurposeExplain, MockResponse{Content: json.RawMessage(
			`{"explanation":"Review the card explanation and try a similar question.","steps":[],"answer":""}`)})
}

// WithFallback sets the response served for purpose once the queue is
// drained. Requests without a purpose label match "unknown".
func (m *MockProvider) WithFallback(purpose string, resp MockResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback[purpose] = resp
	return m
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purpose := PurposeFrom(ctx)
	m.Calls = append(m.Calls, req)
	m.Purposes = append(m.Purposes, purpose)

	var resp MockResponse
	switch fb, ok := m.fallback[purpose]; {
	case len(m.responses) > 0:
		resp = m.responses[0]
		m.responses = m.responses[1:]
	case ok:
		resp = fb
	default:
		return nil, &ErrProviderUnavailable{}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: StopEnd,
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
