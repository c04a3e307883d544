package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/email"
)

func TestSummarizeCollectsParticipantsAndSubjects(t *testing.T) {
	g := &Group{Messages: []*email.Message{
		{From: "anna@x.hu", To: []string{"bela@x.hu", "cili@x.hu"}, Subject: "Budget"},
		{From: "bela@x.hu", To: []string{"anna@x.hu"}, Subject: "Re: Budget"},
		{To: []string{"dora@x.hu"}},
	}}

	s := summarize(g)

	assert.Len(t, s.participants, 4)
	assert.Contains(t, s.participants, "dora@x.hu")
	assert.Len(t, s.subjects, 2)
	assert.Equal(t, 3, s.messageCount)
	assert.Nil(t, s.embedding)
}

func TestSummarizeMeanPoolsEmbeddings(t *testing.T) {
	g := &Group{Messages: []*email.Message{
		{From: "anna@x.hu", Embedding: []float32{1, 0, 3}},
		{From: "bela@x.hu", Embedding: []float32{3, 2, 1}},
		{From: "cili@x.hu"},
	}}

	s := summarize(g)

	require.Len(t, s.embedding, 3)
	assert.InDelta(t, 2.0, s.embedding[0], 1e-6)
	assert.InDelta(t, 1.0, s.embedding[1], 1e-6)
	assert.InDelta(t, 2.0, s.embedding[2], 1e-6)
}

func TestSummarizeSkipsMismatchedEmbeddingLengths(t *testing.T) {
	g := &Group{Messages: []*email.Message{
		{Embedding: []float32{1, 1}},
		{Embedding: []float32{5, 5, 5}},
	}}

	s := summarize(g)

	// The first vector fixes the dimension; mismatches are ignored.
	require.Len(t, s.embedding, 2)
	assert.InDelta(t, 1.0, s.embedding[0], 1e-6)
}

func TestSummarizeCollectsQuestions(t *testing.T) {
	g := &Group{Messages: []*email.Message{
		{Metadata: email.Metadata{QuestionsAsked: []email.Question{
			{Text: "When is the deadline?", NeedsAnswer: true},
		}}},
		{Metadata: email.Metadata{QuestionsAsked: []email.Question{
			{Text: "Who owns the rollout?"},
		}}},
	}}

	s := summarize(g)
	assert.Equal(t, []string{"When is the deadline?", "Who owns the rollout?"}, s.questions)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestSharedCount(t *testing.T) {
	a := map[string]struct{}{"x": {}, "y": {}, "z": {}}
	b := map[string]struct{}{"y": {}, "z": {}, "w": {}}

	assert.Equal(t, 2, sharedCount(a, b))
	assert.Equal(t, 2, sharedCount(b, a))
	assert.Equal(t, 0, sharedCount(a, map[string]struct{}{}))
}

func TestSampleMessages(t *testing.T) {
	g := groupOf("a", "b", "c")

	assert.Len(t, sampleMessages(g, 2), 2)
	assert.Len(t, sampleMessages(g, 3), 3)
	assert.Len(t, sampleMessages(g, 10), 3)
}
