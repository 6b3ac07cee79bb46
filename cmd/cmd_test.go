package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/workflow"
)

func TestStartSweeper(t *testing.T) {
	c, err := startSweeper(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = startSweeper(context.Background(), nil, "not a schedule")
	assert.Error(t, err)
}

func TestPrintStep(t *testing.T) {
	var buf bytes.Buffer
	step := &workflow.Step{
		Feedback: &session.Feedback{IsCorrect: true, Text: "Well done"},
		Presentation: &workflow.PresentationRequest{
			SessionID:     "s-1",
			CorrelationID: "corr-1",
			Card:          workflow.CardPayload{Title: "Halves", Prompt: "Which?"},
			Attempt:       1,
		},
	}
	require.NoError(t, printStep(&buf, step))

	out := buf.String()
	assert.Contains(t, out, "Well done")
	assert.Contains(t, out, "Halves")
	assert.Contains(t, out, "lessonloop respond s-1 corr-1")
}

func TestPrintLLMEvents(t *testing.T) {
	var buf bytes.Buffer
	printLLMEvents(&buf, nil)
	assert.Contains(t, buf.String(), "No LLM calls recorded.")

	buf.Reset()
	printLLMEvents(&buf, []store.LLMEventRecord{{
		ID:        7,
		Timestamp: time.Now(),
		LLMRequestEventData: store.LLMRequestEventData{
			Model: "claude-haiku-4-5", Purpose: "evaluate", SessionID: "sess-abcdefghijklmnop",
			InputTokens: 120, OutputTokens: 30, Success: false,
		},
	}})
	out := buf.String()
	assert.Contains(t, out, "evaluate")
	assert.Contains(t, out, "sess-abcdefg ")
	assert.NotContains(t, out, "sess-abcdefgh")
	assert.Contains(t, out, "✗")
}

func TestPrintLLMEvent(t *testing.T) {
	var buf bytes.Buffer
	printLLMEvent(&buf, &store.LLMEventRecord{
		ID: 3,
		LLMRequestEventData: store.LLMRequestEventData{
			Provider: "openai", Model: "gpt-4o-mini", Purpose: "explain",
			InputTokens: 20000, OutputTokens: 0, ErrorMessage: "boom", RequestBody: `{"q":1}`,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Error:     boom")
	assert.Contains(t, out, "Cost:      $0.0030")
	assert.Contains(t, out, `{"q":1}`)
	assert.Contains(t, out, "(not captured)")
	assert.NotContains(t, out, "Session:")
}

func TestPrintLLMUsage(t *testing.T) {
	var buf bytes.Buffer
	printLLMUsage(&buf, nil, nil)
	assert.Contains(t, buf.String(), "No LLM usage recorded yet.")

	buf.Reset()
	printLLMUsage(&buf,
		[]store.LLMUsageStat{{Purpose: "evaluate", Calls: 2, InputTokens: 100, OutputTokens: 50}},
		[]store.LLMModelUsage{
			{Model: "gpt-4o-mini", Calls: 1, InputTokens: 100, OutputTokens: 50},
			{Model: "homegrown-7b", Calls: 1},
		},
	)
	out := buf.String()
	assert.Contains(t, out, "TOTAL (partial)")
	assert.Contains(t, out, "Pricing unavailable for: homegrown-7b")
}

func TestResolveVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "v1.2.3"
	assert.Equal(t, "v1.2.3", resolveVersion())

	version = ""
	assert.Contains(t, resolveVersion(), "(devel)")
}
