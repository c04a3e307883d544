package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/llm/llmtest"
)

// testEmbedder maps known texts to fixed unit vectors so similarity
// ordering is deterministic.
func testEmbedder() *llmtest.StubClient {
	vectors := map[string][]float32{
		"server outage in production": {1, 0, 0},
		"lunch menu for friday":       {0, 1, 0},
		"outage":                      {0.95, 0.05, 0},
	}
	return &llmtest.StubClient{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			if v, ok := vectors[text]; ok {
				return v, nil
			}
			return []float32{0, 0, 1}, nil
		},
	}
}

func newTestStore(t *testing.T) *ChromemStore {
	store, err := NewChromemStore(ChromemConfig{}, testEmbedder(), nil)
	require.NoError(t, err)
	return store
}

func TestNewChromemStoreRequiresClient(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemConfigApplyDefaults(t *testing.T) {
	cfg := ChromemConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "porthealth_emails", cfg.Collection)

	cfg = ChromemConfig{Collection: "custom"}
	cfg.ApplyDefaults()
	assert.Equal(t, "custom", cfg.Collection)
}

func TestAddDocumentsRejectsEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestAddDocumentsGeneratesMissingIDs(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.AddDocuments(context.Background(), []Document{
		{ID: "m1", Content: "server outage in production"},
		{Content: "lunch menu for friday"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "m1", ids[0])
	assert.NotEmpty(t, ids[1])
	assert.Equal(t, 2, store.Count())
}

func TestSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "m1", Content: "server outage in production", Metadata: map[string]string{"from": "anna@x.hu"}},
		{ID: "m2", Content: "lunch menu for friday"},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "outage", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].ID)
	assert.Equal(t, "anna@x.hu", results[0].Metadata["from"])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchEmbeddingCapsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "m1", Content: "server outage in production", Embedding: []float32{1, 0, 0}},
		{ID: "m2", Content: "lunch menu for friday", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	results, err := store.SearchEmbedding(ctx, []float32{0.9, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].ID)
}

func TestSearchValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Search(ctx, "", 5)
	assert.Error(t, err)

	_, err = store.Search(ctx, "outage", 0)
	assert.Error(t, err)

	_, err = store.SearchEmbedding(ctx, nil, 5)
	assert.Error(t, err)
}

func TestSearchMissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "outage", 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.Zero(t, store.Count())
}
