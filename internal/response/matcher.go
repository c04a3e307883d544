package response

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/llm"
)

// Matcher decides whether an answer reference resolves a question. It tries
// a cheap case-insensitive substring check first and falls back to an oracle
// yes/no judgment only when the heuristic is inconclusive. Oracle failures
// resolve to "no match".
type Matcher struct {
	client llm.Client
	logger *zap.Logger
}

// NewMatcher creates a question/answer matcher.
func NewMatcher(client llm.Client, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{client: client, logger: logger}
}

// Matches reports whether answerRef resolves question.
func (m *Matcher) Matches(ctx context.Context, question, answerRef string) bool {
	if question == "" || answerRef == "" {
		return false
	}

	q := strings.ToLower(question)
	a := strings.ToLower(answerRef)
	if strings.Contains(q, a) || strings.Contains(a, q) {
		return true
	}

	if m.client == nil {
		return false
	}

	prompt := fmt.Sprintf(`Does this answer reference match this question? Answer YES or NO.
Question: %s
Answer reference: %s`, question, answerRef)

	resp, err := m.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.1})
	if err != nil {
		m.logger.Debug("question/answer match oracle failed, treating as no match",
			zap.Error(err),
		)
		return false
	}
	return llm.IsYes(resp)
}
