package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/dispatch"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/workflow"
)

type downEvaluator struct{}

func (downEvaluator) Evaluate(context.Context, evaluator.Request) (*evaluator.Verdict, error) {
	return nil, errors.New("unavailable")
}

func newTestServer(t *testing.T, eval evaluator.Evaluator) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	observability.InitMetrics()
	logger := observability.Discard()
	engine := workflow.New(st.SessionRepo(), eval, workflow.WithLogger(logger))

	pool := dispatch.New(4, 0, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	ts := httptest.NewServer(New(engine, pool, logger).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return ts
}

func startBody() map[string]any {
	return map[string]any{
		"session_id": "s-1",
		"student_id": "stu-1",
		"lesson": lesson.Lesson{
			ID:          "l-1",
			Title:       "Halves",
			OutcomeRefs: []string{"o-1"},
			Cards: []lesson.Card{
				{ID: "c1", Title: "Half", CFU: lesson.CFU{ID: "q1", Kind: lesson.CFUMultipleChoice, Prompt: "Which?", Options: []string{"1/3", "1/2"}, CorrectIndex: 1}},
				{ID: "c2", Title: "Decimal", CFU: lesson.CFU{ID: "q2", Kind: lesson.CFUNumeric, Prompt: "1/2 as a decimal?", Expected: 0.5}},
			},
		},
	}
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func correlationID(t *testing.T, step map[string]any) string {
	t.Helper()
	p, ok := step["presentation"].(map[string]any)
	require.True(t, ok, "no presentation in %v", step)
	return p["correlation_id"].(string)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, evaluator.NewRuleEvaluator())

	resp, step := do(t, ts, http.MethodPost, "/v1/sessions", startBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := step["presentation"].(map[string]any)
	assert.Equal(t, "mcq", p["cfu_type"])
	assert.NotContains(t, p["card_payload"], "correct_index")

	resp, step = do(t, ts, http.MethodPost, "/v1/sessions/s-1/responses", map[string]any{
		"correlation_id": correlationID(t, step),
		"action":         "submit_answer",
		"response_text":  "2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fb := step["feedback"].(map[string]any)
	assert.Equal(t, true, fb["is_correct"])

	resp, step = do(t, ts, http.MethodPost, "/v1/sessions/s-1/responses", map[string]any{
		"correlation_id": correlationID(t, step),
		"response_text":  "0.5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := step["summary"].(map[string]any)
	assert.Equal(t, 1.0, sum["overall_accuracy"])
	assert.Equal(t, false, sum["retry_recommended"])

	resp, step = do(t, ts, http.MethodGet, "/v1/sessions/s-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, step["session"].(map[string]any)["done"])
}

func TestStaleResponseIgnored(t *testing.T) {
	ts := newTestServer(t, evaluator.NewRuleEvaluator())
	do(t, ts, http.MethodPost, "/v1/sessions", startBody())

	resp, step := do(t, ts, http.MethodPost, "/v1/sessions/s-1/responses", map[string]any{
		"correlation_id": "bogus",
		"response_text":  "2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, step["ignored"])
	assert.Equal(t, workflow.IgnoreCorrelationMismatch, step["ignore_reason"])
}

func TestRetryableErrorIs503(t *testing.T) {
	ts := newTestServer(t, downEvaluator{})
	_, step := do(t, ts, http.MethodPost, "/v1/sessions", startBody())

	resp, body := do(t, ts, http.MethodPost, "/v1/sessions/s-1/responses", map[string]any{
		"correlation_id": correlationID(t, step),
		"response_text":  "2",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, true, body["retry"])

	// Progress is kept; resume still fails the same way.
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions/s-1/resume", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t, evaluator.NewRuleEvaluator())

	resp, _ := do(t, ts, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	bad := startBody()
	bad["lesson"] = lesson.Lesson{ID: "empty"}
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	do(t, ts, http.MethodPost, "/v1/sessions", startBody())
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions", startBody())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions/s-1/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions/s-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, evaluator.NewRuleEvaluator())

	resp, body := do(t, ts, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = do(t, ts, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		retry  bool
	}{
		{&evaluator.RetryableError{Op: "x", Err: errors.New("y")}, http.StatusServiceUnavailable, true},
		{fmt.Errorf("wrap: %w", store.ErrCorrupted), http.StatusInternalServerError, false},
		{workflow.ErrInvalidInput, http.StatusBadRequest, false},
		{dispatch.ErrStopped, http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		status, retry := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.retry, retry, tt.err.Error())
	}
}
