package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/response"
)

// ConnectionScorer computes weighted multi-signal connection scores for
// pairs of initial groups. The oracle is consulted only for borderline
// scores inside the tie-break band.
type ConnectionScorer struct {
	client  llm.Client
	matcher *response.Matcher
	cfg     ScoringConfig
	logger  *zap.Logger
}

// NewConnectionScorer creates a connection scorer.
func NewConnectionScorer(client llm.Client, matcher *response.Matcher, cfg ScoringConfig, logger *zap.Logger) *ConnectionScorer {
	if cfg == (ScoringConfig{}) {
		cfg = DefaultScoringConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionScorer{client: client, matcher: matcher, cfg: cfg, logger: logger}
}

// FindConnections scores every unordered pair of groups and returns the
// pairs whose clamped score exceeds the connection threshold. Pairs are
// returned in discovery order (i ascending, then j).
func (s *ConnectionScorer) FindConnections(ctx context.Context, groups []*Group) []Connection {
	summaries := make([]groupSummary, len(groups))
	for i, g := range groups {
		summaries[i] = summarize(g)
	}

	var connections []Connection
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			score, reasons := s.scorePair(ctx, groups[i], groups[j], summaries[i], summaries[j])
			if score > s.cfg.ConnectionThreshold {
				connections = append(connections, Connection{
					I:       i,
					J:       j,
					Score:   score,
					Reasons: reasons,
				})
			}
		}
	}

	s.logger.Debug("connection scoring complete",
		zap.Int("groups", len(groups)),
		zap.Int("connections", len(connections)),
	)
	return connections
}

// scorePair computes the aggregate connection score for one pair of groups.
// Signals contribute independently; the total is clamped to 1.0.
func (s *ConnectionScorer) scorePair(ctx context.Context, a, b *Group, sa, sb groupSummary) (float64, []string) {
	score := 0.0
	var reasons []string

	// 1. Mean-pooled embedding similarity.
	if sa.embedding != nil && sb.embedding != nil {
		if sim := cosineSimilarity(sa.embedding, sb.embedding); sim > s.cfg.EmbeddingSimilarityThreshold {
			score += s.cfg.EmbeddingSimilarityWeight
			reasons = append(reasons, fmt.Sprintf("High semantic similarity: %.2f", sim))
		}
	}

	// 2. Participant overlap.
	if shared := sharedCount(sa.participants, sb.participants); shared >= s.cfg.ParticipantOverlapMin {
		score += s.cfg.ParticipantOverlapWeight
		reasons = append(reasons, fmt.Sprintf("%d common participants", shared))
	}

	// 3. A question asked in A answered in B.
	if s.answersCrossReference(ctx, sa.questions, b) {
		score += s.cfg.AnswerCrossRefWeight
		reasons = append(reasons, "Second group answers question from first")
	}

	// 4. A body in B contains a subject string from A.
	if referencesSubjects(b, sa.subjects) {
		score += s.cfg.SubjectReferenceWeight
		reasons = append(reasons, "Second group references first group's subjects")
	}

	// 5. A message in B declares a reply target matching a subject in A.
	if declaresReplyTo(b, sa.subjects) {
		score += s.cfg.ReplyLinkWeight
		reasons = append(reasons, "Direct forward/reply connection")
	}

	// 6. Shared extracted key terms.
	if shared := sharedCount(sa.keyTerms, sb.keyTerms); shared > s.cfg.SharedKeyTermsMin {
		score += s.cfg.SharedKeyTermsWeight
		reasons = append(reasons, fmt.Sprintf("%d common key terms", shared))
	}

	// 7. Oracle tie-break, only inside the borderline band.
	if score > s.cfg.TieBreakLow && score < s.cfg.TieBreakHigh {
		if s.verifyWithOracle(ctx, a, b) {
			score += s.cfg.TieBreakWeight
			reasons = append(reasons, "Oracle confirmed connection")
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

// answersCrossReference reports whether any question from the first group's
// summary is matched by an answer in the second group.
func (s *ConnectionScorer) answersCrossReference(ctx context.Context, questions []string, b *Group) bool {
	for _, q := range questions {
		for _, msg := range b.Messages {
			for _, answer := range msg.Metadata.AnswersProvided {
				if s.matcher.Matches(ctx, q, answer.AnswersQuestion) {
					return true
				}
			}
		}
	}
	return false
}

// referencesSubjects reports whether any message body in the group contains
// one of the given non-empty subject strings.
func referencesSubjects(g *Group, subjects map[string]struct{}) bool {
	for _, msg := range g.Messages {
		if msg.Body == "" {
			continue
		}
		for subject := range subjects {
			if subject != "" && strings.Contains(msg.Body, subject) {
				return true
			}
		}
	}
	return false
}

// declaresReplyTo reports whether any message in the group names a
// reply-target subject contained in one of the given subjects.
func declaresReplyTo(g *Group, subjects map[string]struct{}) bool {
	for _, msg := range g.Messages {
		target := msg.Metadata.ReplyToSubject
		if target == "" {
			continue
		}
		for subject := range subjects {
			if subject != "" && strings.Contains(target, subject) {
				return true
			}
		}
	}
	return false
}

// verifyWithOracle asks the oracle whether two sampled sub-groups belong to
// the same conversation. Failures resolve to "no".
func (s *ConnectionScorer) verifyWithOracle(ctx context.Context, a, b *Group) bool {
	if s.client == nil {
		return false
	}

	prompt := fmt.Sprintf(`Are these two email groups part of the same conversation or discussing the same issue?

Group 1:
%s

Group 2:
%s

Answer YES if they are clearly connected, NO if they are separate topics.`,
		formatSample(sampleMessages(a, s.cfg.TieBreakSampleSize)),
		formatSample(sampleMessages(b, s.cfg.TieBreakSampleSize)))

	resp, err := s.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.1})
	if err != nil {
		s.logger.Debug("tie-break oracle failed, treating as not connected",
			zap.Error(err),
		)
		return false
	}
	return llm.IsYes(resp)
}

// formatSample renders messages as subject/body-preview lines for the
// tie-break prompt.
func formatSample(msgs []*email.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		body := m.Body
		if len(body) > 200 {
			body = body[:200]
		}
		fmt.Fprintf(&sb, "- %s: %s\n", m.Subject, body)
	}
	return sb.String()
}
