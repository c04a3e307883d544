package analyzer

import (
	"math"

	"github.com/refurd/portfolio-health-system/internal/email"
)

// groupSummary is the precomputed digest of one group used by the
// connection scorer.
type groupSummary struct {
	participants map[string]struct{}
	subjects     map[string]struct{}
	keyTerms     map[string]struct{}
	questions    []string

	// embedding is the mean-pooled message embedding; nil when no message
	// carries a vector.
	embedding []float32

	messageCount int
}

// summarize builds the scoring digest for a group.
func summarize(g *Group) groupSummary {
	s := groupSummary{
		participants: make(map[string]struct{}),
		subjects:     make(map[string]struct{}),
		keyTerms:     make(map[string]struct{}),
		messageCount: len(g.Messages),
	}

	var pooled []float32
	var pooledCount int

	for _, m := range g.Messages {
		if m.From != "" {
			s.participants[m.From] = struct{}{}
		}
		for _, p := range m.To {
			s.participants[p] = struct{}{}
		}
		if m.Subject != "" {
			s.subjects[m.Subject] = struct{}{}
		}
		for _, term := range ExtractKeyPhrases(m.Body) {
			s.keyTerms[term] = struct{}{}
		}
		for _, q := range m.Metadata.QuestionsAsked {
			s.questions = append(s.questions, q.Text)
		}

		if len(m.Embedding) > 0 {
			if pooled == nil {
				pooled = make([]float32, len(m.Embedding))
			}
			if len(m.Embedding) == len(pooled) {
				for i, v := range m.Embedding {
					pooled[i] += v
				}
				pooledCount++
			}
		}
	}

	if pooledCount > 0 {
		for i := range pooled {
			pooled[i] /= float32(pooledCount)
		}
		s.embedding = pooled
	}

	return s
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sharedCount returns how many keys two sets have in common.
func sharedCount(a, b map[string]struct{}) int {
	// Iterate the smaller set.
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// sampleMessages returns up to n leading messages of a group.
func sampleMessages(g *Group, n int) []*email.Message {
	if len(g.Messages) <= n {
		return g.Messages
	}
	return g.Messages[:n]
}
