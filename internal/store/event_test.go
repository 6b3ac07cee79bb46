package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/session"
)

func TestEvidenceEvents(t *testing.T) {
	repo := openTestStore(t).EventRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	credit := 0.75

	require.NoError(t, repo.AppendEvidence(ctx, EvidenceEventData{
		SessionID: "s1", StudentID: "stu", LessonID: "l1",
		Entry: session.EvidenceEntry{Timestamp: now, CardID: "c1", CFUID: "q1", Response: "2", IsCorrect: true, Confidence: 1, Attempt: 1},
	}))
	require.NoError(t, repo.AppendEvidence(ctx, EvidenceEventData{
		SessionID: "s2", StudentID: "stu", LessonID: "l1",
		Entry: session.EvidenceEntry{Timestamp: now, CardID: "c3", CFUID: "q3", Response: "because", PartialCredit: &credit, Attempt: 2},
	}))

	all, err := repo.QueryEvidence(ctx, "", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].Sequence, all[1].Sequence)

	s2, err := repo.QueryEvidence(ctx, "s2", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, s2, 1)
	require.NotNil(t, s2[0].PartialCredit)
	assert.Equal(t, 0.75, *s2[0].PartialCredit)
	assert.Equal(t, 2, s2[0].Attempt)
	assert.Nil(t, all[0].PartialCredit)
}

func TestMasteryEvents(t *testing.T) {
	repo := openTestStore(t).EventRepo()
	ctx := context.Background()

	for i, outcome := range []string{"o1", "o2", "o1"} {
		require.NoError(t, repo.AppendMastery(ctx, MasteryEventData{
			SessionID: "s1", StudentID: "stu", LessonID: "l1",
			Update: session.MasteryUpdate{OutcomeID: outcome, CardID: "c1", Score: float64(i+1) / 10},
		}))
	}
	require.NoError(t, repo.AppendMastery(ctx, MasteryEventData{
		SessionID: "s9", StudentID: "other",
		Update:    session.MasteryUpdate{OutcomeID: "o1", Score: 1},
	}))

	recs, err := repo.QueryMastery(ctx, "stu", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "o2", recs[1].OutcomeID)
	assert.InDelta(t, 0.3, recs[2].Score, 1e-9)

	limited, err := repo.QueryMastery(ctx, "", QueryOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	after, err := repo.QueryMastery(ctx, "", QueryOpts{After: recs[2].Sequence})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "other", after[0].StudentID)
}

func TestLLMEvents(t *testing.T) {
	repo := openTestStore(t).EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-haiku-4-5", Purpose: "evaluate", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true, RequestBody: "req", ResponseBody: "resp"},
		{Provider: "anthropic", Model: "claude-haiku-4-5", Purpose: "evaluate", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "openai", Model: "gpt-4o-mini", Purpose: "explain", Success: false, ErrorMessage: "boom", SessionID: "s1"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	list, err := repo.QueryLLMEvents(ctx, LLMEventFilter{QueryOpts: QueryOpts{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "explain", list[0].Purpose, "newest first")
	assert.Equal(t, "s1", list[0].SessionID)

	evals, err := repo.QueryLLMEvents(ctx, LLMEventFilter{QueryOpts: QueryOpts{Limit: 1}, Purpose: "evaluate"})
	require.NoError(t, err)
	require.Len(t, evals, 1, "purpose filter runs before the limit")
	assert.Equal(t, int64(100), evals[0].LatencyMs)

	failed, err := repo.QueryLLMEvents(ctx, LLMEventFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].ErrorMessage)

	bySession, err := repo.QueryLLMEvents(ctx, LLMEventFilter{SessionID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, bySession)

	first, err := repo.GetLLMEvent(ctx, list[1].ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "evaluate", first.Purpose)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, LLMUsageStat{Purpose: "evaluate", Calls: 2, InputTokens: 150, OutputTokens: 30, AvgLatencyMs: 200}, byPurpose[0])

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "claude-haiku-4-5", byModel[0].Model)
	assert.Equal(t, 2, byModel[0].Calls)
}
