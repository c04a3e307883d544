package priority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

var priorityTracer = otel.Tracer("porthealth.priority")

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config tunes the priority scorer.
type Config struct {
	// AttentionFlags are the dimensions scored per thread. Empty means
	// DefaultAttentionFlags.
	AttentionFlags []string

	// ValidationRounds is how many validator rounds feed the final score.
	ValidationRounds int
}

// Scorer computes priority assessments for assembled threads.
type Scorer struct {
	client    llm.Client
	validator llm.Validator
	cfg       Config
	logger    *zap.Logger
}

// NewScorer creates a priority scorer.
func NewScorer(client llm.Client, validator llm.Validator, cfg Config, logger *zap.Logger) *Scorer {
	if len(cfg.AttentionFlags) == 0 {
		cfg.AttentionFlags = DefaultAttentionFlags
	}
	if cfg.ValidationRounds == 0 {
		cfg.ValidationRounds = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{client: client, validator: validator, cfg: cfg, logger: logger}
}

// Score assesses one thread. Every oracle sub-step degrades to an empty
// result on failure; the assessment itself always succeeds, with score 0.0
// when no validation round produced a usable number.
func (s *Scorer) Score(ctx context.Context, t *thread.Thread) *Priority {
	ctx, span := priorityTracer.Start(ctx, "priority.score")
	defer span.End()
	span.SetAttributes(attribute.String("thread.id", t.ID))

	now := timeNow()
	daysStalled := t.DaysSince(now)

	attention := s.attentionScores(ctx, t, daysStalled)
	issues := s.identifyIssues(ctx, t, daysStalled)
	recommendations := s.recommendations(ctx, t, issues)

	assessment := map[string]any{
		"thread_id":             t.ID,
		"attention_flags":       attention,
		"issues":                issues,
		"recommendations":       recommendations,
		"days_stalled":          daysStalled,
		"external_participants": t.ExternalParticipants,
	}

	var validated []float64
	for round := 0; round < s.cfg.ValidationRounds; round++ {
		result, err := s.validator.Validate(ctx, assessment, validationInstruction)
		if err != nil {
			s.logger.Debug("validation round failed",
				zap.String("thread_id", t.ID),
				zap.Int("round", round),
				zap.Error(err),
			)
			continue
		}
		if !result.Valid {
			continue
		}
		validated = append(validated, result.Score)
	}

	score := 0.0
	if len(validated) > 0 {
		sum := 0.0
		for _, v := range validated {
			sum += v
		}
		score = sum / float64(len(validated))
	}

	messageID := ""
	if len(t.MessageIDs) > 0 {
		messageID = t.MessageIDs[len(t.MessageIDs)-1]
	}

	return &Priority{
		MessageID:            messageID,
		ThreadID:             t.ID,
		Score:                score,
		AttentionScores:      attention,
		Issues:               issues,
		Recommendations:      recommendations,
		DaysStalled:          daysStalled,
		LastActivity:         t.LastActivity,
		Participants:         t.Participants,
		ExternalParticipants: t.ExternalParticipants,
		Attachments:          t.Attachments,
		CreatedAt:            now,
		ValidationScores:     validated,
	}
}

// attentionScores asks the oracle to rate each attention flag 0..1. All flags
// score 0.0 on any failure; flags missing from the response also score 0.0.
func (s *Scorer) attentionScores(ctx context.Context, t *thread.Thread, daysStalled int) map[string]float64 {
	scores := make(map[string]float64, len(s.cfg.AttentionFlags))
	for _, flag := range s.cfg.AttentionFlags {
		scores[flag] = 0.0
	}

	flagList, err := json.Marshal(s.cfg.AttentionFlags)
	if err != nil {
		return scores
	}

	prompt := fmt.Sprintf(`Analyze this email thread and score each attention flag from 0 to 1:

Thread Subject: %s
Days Since Last Activity: %d
Unresolved Questions: %d
Blockers: %d
External Participants: %d

Attention flags to score:
%s

Return JSON object with scores for each flag.`,
		t.Subject, daysStalled, len(t.UnresolvedQuestions), len(t.Blockers),
		len(t.ExternalParticipants), flagList)

	resp, err := s.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil {
		s.logger.Debug("attention scoring failed", zap.String("thread_id", t.ID), zap.Error(err))
		return scores
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &raw); err != nil {
		return scores
	}
	for _, flag := range s.cfg.AttentionFlags {
		if v, ok := raw[flag]; ok {
			scores[flag] = v
		}
	}
	return scores
}

// identifyIssues asks the oracle to enumerate issues. Empty on failure.
func (s *Scorer) identifyIssues(ctx context.Context, t *thread.Thread, daysStalled int) []Issue {
	questions, err := json.Marshal(t.UnresolvedQuestions)
	if err != nil {
		return []Issue{}
	}
	blockers, err := json.Marshal(t.Blockers)
	if err != nil {
		return []Issue{}
	}

	prompt := fmt.Sprintf(`Identify critical issues in this thread:

Subject: %s
Unresolved Questions: %s
Blockers: %s
Days Stalled: %d

Return JSON array of issues with format:
[
    {
        "type": "issue type",
        "severity": "critical/high/medium/low",
        "description": "detailed description",
        "impact": "business impact"
    }
]`, t.Subject, questions, blockers, daysStalled)

	resp, err := s.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil {
		s.logger.Debug("issue identification failed", zap.String("thread_id", t.ID), zap.Error(err))
		return []Issue{}
	}

	var issues []Issue
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &issues); err != nil {
		return []Issue{}
	}
	return issues
}

// recommendations asks the oracle for actionable next steps given the issues.
// Empty on failure.
func (s *Scorer) recommendations(ctx context.Context, t *thread.Thread, issues []Issue) []string {
	issueList, err := json.Marshal(issues)
	if err != nil {
		return []string{}
	}

	prompt := fmt.Sprintf(`Generate actionable recommendations for these issues:

Thread: %s
Issues: %s

Return JSON array of brief, actionable recommendations.`, t.Subject, issueList)

	resp, err := s.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.5})
	if err != nil {
		s.logger.Debug("recommendation generation failed", zap.String("thread_id", t.ID), zap.Error(err))
		return []string{}
	}

	var recs []string
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &recs); err != nil {
		return []string{}
	}
	return recs
}

const validationInstruction = `Validate this priority assessment and provide a confidence score (0-1).
Consider:
- Are the attention flags accurately scored?
- Are all critical issues identified?
- Are the recommendations actionable?
- Is the severity assessment correct?

Return JSON with:
{
    "score": 0.0-1.0,
    "concerns": ["list of concerns if any"],
    "suggestions": ["improvement suggestions"]
}`
