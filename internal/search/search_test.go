package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm/llmtest"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/storage"
	"github.com/refurd/portfolio-health-system/internal/thread"
	"github.com/refurd/portfolio-health-system/internal/vectorstore"
)

func fixTime(t *testing.T, now time.Time) {
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
}

func newIndexedService(t *testing.T) (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	client := &llmtest.StubClient{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, client, nil)
	require.NoError(t, err)
	return NewService(store, client, vectors, nil), store
}

func TestIndexAndSearchMessages(t *testing.T) {
	svc, _ := newIndexedService(t)
	ctx := context.Background()

	msgs := []*email.Message{
		{
			ID: "m1", From: "anna@x.hu", Subject: "Server outage",
			Body: "Production is down.",
			Date: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			// Precomputed vector, stored as-is.
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: "m2", From: "bela@x.hu", Subject: "Lunch",
			Date:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Embedding: []float32{0, 1, 0},
		},
	}
	require.NoError(t, svc.IndexMessages(ctx, msgs))

	hits, err := svc.SearchMessages(ctx, "what broke in production", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "m1", hits[0].MessageID)
	assert.Equal(t, "Server outage", hits[0].Subject)
	assert.Equal(t, "anna@x.hu", hits[0].From)
	assert.Equal(t, "2026-03-01T09:00:00Z", hits[0].Date)
}

func TestIndexMessagesEmptyCorpus(t *testing.T) {
	svc, _ := newIndexedService(t)
	assert.NoError(t, svc.IndexMessages(context.Background(), nil))
}

func TestHighPriorities(t *testing.T) {
	svc, store := newIndexedService(t)
	ctx := context.Background()

	threadID, err := store.InsertThread(ctx, &thread.Thread{Subject: "Vendor contract"})
	require.NoError(t, err)

	for _, p := range []*priority.Priority{
		{ThreadID: threadID, Score: 0.4},
		{ThreadID: threadID, Score: 0.9},
		{ThreadID: "gone", Score: 0.7},
	} {
		_, err := store.InsertPriority(ctx, p)
		require.NoError(t, err)
	}

	ranked, err := svc.HighPriorities(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.InDelta(t, 0.9, ranked[0].Priority.Score, 1e-9)
	require.NotNil(t, ranked[0].Thread)
	assert.Equal(t, "Vendor contract", ranked[0].Thread.Subject)

	// A priority whose thread no longer resolves is kept without it.
	assert.InDelta(t, 0.7, ranked[1].Priority.Score, 1e-9)
	assert.Nil(t, ranked[1].Thread)
}

func TestPendingToday(t *testing.T) {
	fixTime(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	svc, store := newIndexedService(t)
	ctx := context.Background()

	_, err := store.InsertThread(ctx, &thread.Thread{
		Subject: "Rollout",
		Metadata: thread.Metadata{
			DailyStatus: map[string]response.DayStatus{
				"2026-03-10": {
					Questions: []response.DayQuestion{
						{Question: "Is staging green?", AnsweredSameDay: false},
						{Question: "Who is on call?", AnsweredSameDay: true},
					},
				},
			},
			UnansweredToday: []response.StaleQuestion{
				{Question: "Old critical question?", DaysWaiting: 9, Critical: true},
				{Question: "Old but not critical?", DaysWaiting: 4, Critical: false},
			},
		},
	})
	require.NoError(t, err)

	_, err = store.InsertThread(ctx, &thread.Thread{
		Subject: "Quiet thread",
	})
	require.NoError(t, err)

	pending, err := svc.PendingToday(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	entry := pending[0]
	assert.Equal(t, "Rollout", entry.ThreadSubject)
	require.Len(t, entry.Questions, 1)
	assert.Equal(t, "Is staging green?", entry.Questions[0].Question)
	require.Len(t, entry.Critical, 1)
	assert.Equal(t, 9, entry.OldestDays)
}

func TestResponseTimeline(t *testing.T) {
	svc, store := newIndexedService(t)
	ctx := context.Background()

	avg := 4.0
	threadID, err := store.InsertThread(ctx, &thread.Thread{
		Subject: "Rollout",
		Metadata: thread.Metadata{
			DailyStatus: map[string]response.DayStatus{
				"2026-03-02": {TotalQuestions: 1, UnansweredSameDay: 1, HasPendingResponse: true, MessageCount: 2},
				"2026-03-01": {TotalQuestions: 2, AnsweredSameDay: 2, AverageResponseTimeHours: &avg, MessageCount: 3},
			},
			ResponseTimesByDay: map[string]response.DayResponseTimes{
				"2026-03-01": {AvgHours: 4.0, ResponseRate: 1.0},
			},
		},
	})
	require.NoError(t, err)

	timeline, err := svc.ResponseTimeline(ctx, threadID)
	require.NoError(t, err)

	assert.Equal(t, 2, timeline.TotalDays)
	assert.Equal(t, 1, timeline.DaysWithUnanswered)
	// Days come back sorted by date.
	assert.Equal(t, "2026-03-01", timeline.Days[0].Date)
	assert.Equal(t, "2026-03-02", timeline.Days[1].Date)
	require.NotNil(t, timeline.Days[0].ResponseRate)
	assert.InDelta(t, 1.0, *timeline.Days[0].ResponseRate, 1e-9)
	assert.Nil(t, timeline.Days[1].ResponseRate)
	assert.InDelta(t, 0.5, timeline.AverageDailyResponseRate, 1e-9)
}

func TestResponseTimelineMissingThread(t *testing.T) {
	svc, _ := newIndexedService(t)
	_, err := svc.ResponseTimeline(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRelatedThreads(t *testing.T) {
	svc, store := newIndexedService(t)
	ctx := context.Background()

	baseID, err := store.InsertThread(ctx, &thread.Thread{
		Subject:      "Q2 Budget",
		Participants: []string{"anna@x.hu", "bela@x.hu", "cili@x.hu"},
	})
	require.NoError(t, err)

	contID, err := store.InsertThread(ctx, &thread.Thread{
		Subject:      "Fwd: Q2 Budget",
		Participants: []string{"anna@x.hu", "bela@x.hu"},
		Metadata: thread.Metadata{
			ThreadContinuations: []thread.Continuation{
				{Type: "forwarded", OriginalSubject: "Q2 Budget"},
			},
		},
	})
	require.NoError(t, err)

	overlapID, err := store.InsertThread(ctx, &thread.Thread{
		Subject:      "Hiring plan",
		Participants: []string{"anna@x.hu", "cili@x.hu", "bela@x.hu"},
	})
	require.NoError(t, err)

	_, err = store.InsertThread(ctx, &thread.Thread{
		Subject:      "Unrelated",
		Participants: []string{"anna@x.hu", "zita@y.hu"},
	})
	require.NoError(t, err)

	related, err := svc.RelatedThreads(ctx, baseID)
	require.NoError(t, err)
	require.Len(t, related, 2)

	// The continuation outranks the larger participant overlap.
	assert.Equal(t, contID, related[0].ThreadID)
	assert.True(t, related[0].IsContinuation)
	assert.Equal(t, overlapID, related[1].ThreadID)
	assert.False(t, related[1].IsContinuation)
	assert.Len(t, related[1].CommonParticipants, 3)
}
