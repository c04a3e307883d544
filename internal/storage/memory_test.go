package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

func TestMemoryStoreMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id1, err := store.InsertMessage(ctx, &email.Message{ID: "m1", Subject: "First"})
	require.NoError(t, err)
	assert.Equal(t, "m1", id1)

	id2, err := store.InsertMessage(ctx, &email.Message{Subject: "Second"})
	require.NoError(t, err)
	assert.NotEmpty(t, id2)

	msgs, err := store.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "First", msgs[0].Subject)
	assert.Equal(t, "Second", msgs[1].Subject)
}

func TestMemoryStoreThreadsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, subject := range []string{"zeta", "alpha", "mid"} {
		_, err := store.InsertThread(ctx, &thread.Thread{Subject: subject})
		require.NoError(t, err)
	}

	threads, err := store.Threads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, "zeta", threads[0].Subject)
	assert.Equal(t, "alpha", threads[1].Subject)
	assert.Equal(t, "mid", threads[2].Subject)
}

func TestMemoryStoreThreadLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.InsertThread(ctx, &thread.Thread{Subject: "Deadline"})
	require.NoError(t, err)

	got, err := store.Thread(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Deadline", got.Subject)

	_, err = store.Thread(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreClearAnalysisKeepsMessages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.InsertMessage(ctx, &email.Message{ID: "m1"})
	require.NoError(t, err)
	threadID, err := store.InsertThread(ctx, &thread.Thread{Subject: "Old run"})
	require.NoError(t, err)
	_, err = store.InsertPriority(ctx, &priority.Priority{ThreadID: threadID})
	require.NoError(t, err)

	require.NoError(t, store.ClearAnalysis(ctx))

	msgs, err := store.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	threads, err := store.Threads(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)

	priorities, err := store.Priorities(ctx)
	require.NoError(t, err)
	assert.Empty(t, priorities)

	_, err = store.Thread(ctx, threadID)
	assert.ErrorIs(t, err, ErrNotFound)
}
