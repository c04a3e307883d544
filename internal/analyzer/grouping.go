package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
)

// DefaultBatchSize bounds the number of message summaries per grouping
// prompt. Smaller batches trade oracle calls for accuracy.
const DefaultBatchSize = 30

// fallbackConfidence is assigned to singleton groups created when a batch's
// oracle call fails or returns unparseable output.
const fallbackConfidence = 0.5

// missingConfidence is assumed when the oracle omits a group confidence.
const missingConfidence = 0.8

// bodyPreviewChars caps the body excerpt included in message summaries.
const bodyPreviewChars = 300

// GroupingEngine batches messages and asks the oracle to propose initial
// conversation groups.
type GroupingEngine struct {
	client    llm.Client
	batchSize int
	logger    *zap.Logger
}

// NewGroupingEngine creates a grouping engine.
func NewGroupingEngine(client llm.Client, batchSize int, logger *zap.Logger) *GroupingEngine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupingEngine{client: client, batchSize: batchSize, logger: logger}
}

// messageSummary is the per-message digest sent to the grouping oracle.
type messageSummary struct {
	Index            int      `json:"index"`
	ID               string   `json:"id"`
	Subject          string   `json:"subject"`
	From             string   `json:"from"`
	Date             string   `json:"date"`
	To               []string `json:"to"`
	Cc               []string `json:"cc,omitempty"`
	IsReplyTo        string   `json:"is_reply_to,omitempty"`
	ReplyingToFrom   string   `json:"replying_to_from,omitempty"`
	HasQuestions     bool     `json:"has_questions"`
	HasAnswers       bool     `json:"has_answers"`
	Questions        []string `json:"questions,omitempty"`
	KeyPhrases       []string `json:"key_phrases,omitempty"`
	MentionsSubjects []string `json:"mentions_subjects,omitempty"`
	BodyPreview      string   `json:"body_preview"`
}

// groupingResponse is the JSON shape the grouping oracle returns.
type groupingResponse struct {
	Groups []struct {
		EmailIndices   []int    `json:"email_indices"`
		MainTopic      string   `json:"main_topic"`
		KeyIdentifiers []string `json:"key_identifiers"`
		Confidence     float64  `json:"confidence"`
	} `json:"groups"`
	PotentialMerges []struct {
		Group1     int     `json:"group1_idx"`
		Group2     int     `json:"group2_idx"`
		Reason     string  `json:"reason"`
		Confidence float64 `json:"confidence"`
	} `json:"potential_merges"`
}

const groupingPrompt = `Analyze these emails and group them into conversation threads with MAXIMUM ACCURACY.

CRITICAL GROUPING RULES:
1. Emails with "Re:" or "Fwd:" MUST be grouped with their original thread
2. If an email answers questions from another email, they belong together
3. If someone forwards a conversation and discussion continues, group them
4. If topics/projects are discussed across different subject lines, group them
5. Check for quoted text that references other emails
6. Look for project names, ticket numbers, or other identifiers
7. Consider participant overlap - same people discussing same topic

SPECIAL ATTENTION:
- An email mentioning another email's subject or content should be grouped together
- "Forwarded message" sections indicate thread continuation
- Questions in one thread answered in another means they should merge

Emails to analyze:
%s

Return a detailed JSON object:
{
    "groups": [
        {
            "email_indices": [list of indices],
            "main_topic": "what this thread is about",
            "key_identifiers": ["project names", "ticket numbers", etc],
            "confidence": 0.0-1.0
        }
    ],
    "potential_merges": [
        {
            "group1_idx": 0,
            "group2_idx": 1,
            "reason": "specific reason these might be the same conversation",
            "confidence": 0.0-1.0
        }
    ]
}`

// GroupMessages proposes initial conversation groups for the corpus.
//
// Messages must have ids, senders and timestamps; callers pre-filter. A
// failed batch degrades to singleton groups with confidence 0.5 and never
// blocks the run.
func (e *GroupingEngine) GroupMessages(ctx context.Context, msgs []*email.Message) GroupingResult {
	summaries := e.buildSummaries(msgs)

	var result GroupingResult
	for start := 0; start < len(summaries); start += e.batchSize {
		end := start + e.batchSize
		if end > len(summaries) {
			end = len(summaries)
		}
		e.groupBatch(ctx, msgs, summaries[start:end], start, &result)
	}
	return result
}

// buildSummaries prepares the per-message digests for the oracle prompt.
func (e *GroupingEngine) buildSummaries(msgs []*email.Message) []messageSummary {
	allSubjects := make([]string, len(msgs))
	for i, m := range msgs {
		allSubjects[i] = m.Subject
	}

	summaries := make([]messageSummary, len(msgs))
	for i, m := range msgs {
		questions := make([]string, 0, len(m.Metadata.QuestionsAsked))
		for _, q := range m.Metadata.QuestionsAsked {
			questions = append(questions, q.Text)
		}

		preview := m.Body
		if len(preview) > bodyPreviewChars {
			preview = preview[:bodyPreviewChars]
		}

		summaries[i] = messageSummary{
			Index:            i,
			ID:               m.ID,
			Subject:          m.Subject,
			From:             m.From,
			Date:             m.Date.Format("2006-01-02T15:04:05Z07:00"),
			To:               m.To,
			Cc:               m.Cc,
			IsReplyTo:        m.Metadata.ReplyToSubject,
			ReplyingToFrom:   m.Metadata.ReplyToSender,
			HasQuestions:     len(m.Metadata.QuestionsAsked) > 0,
			HasAnswers:       len(m.Metadata.AnswersProvided) > 0,
			Questions:        questions,
			KeyPhrases:       ExtractKeyPhrases(m.Body),
			MentionsSubjects: FindSubjectReferences(m.Body, allSubjects),
			BodyPreview:      preview,
		}
	}
	return summaries
}

// groupBatch asks the oracle to group one batch and appends parsed groups,
// translating batch-local indices to corpus-global ones.
func (e *GroupingEngine) groupBatch(ctx context.Context, msgs []*email.Message, batch []messageSummary, offset int, result *GroupingResult) {
	// Batch-local indices must start at zero for the oracle.
	local := make([]messageSummary, len(batch))
	for i, s := range batch {
		s.Index = i
		local[i] = s
	}

	payload, err := json.MarshalIndent(local, "", "  ")
	if err != nil {
		e.fallbackSingletons(msgs, offset, len(batch), result)
		return
	}

	resp, err := e.client.Generate(ctx, fmt.Sprintf(groupingPrompt, string(payload)), llm.GenerateOptions{Temperature: 0.1})
	if err != nil {
		e.logger.Warn("grouping oracle call failed, degrading batch to singletons",
			zap.Int("batch_offset", offset),
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		e.fallbackSingletons(msgs, offset, len(batch), result)
		return
	}

	var parsed groupingResponse
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &parsed); err != nil {
		e.logger.Warn("grouping oracle returned unparseable output, degrading batch to singletons",
			zap.Int("batch_offset", offset),
			zap.Error(err),
		)
		e.fallbackSingletons(msgs, offset, len(batch), result)
		return
	}

	groupIndexBase := len(result.Groups)

	for _, g := range parsed.Groups {
		var groupMsgs []*email.Message
		for _, idx := range g.EmailIndices {
			global := offset + idx
			if global >= 0 && global < len(msgs) && idx >= 0 && idx < len(batch) {
				groupMsgs = append(groupMsgs, msgs[global])
			}
		}
		if len(groupMsgs) == 0 {
			continue
		}

		confidence := g.Confidence
		if confidence == 0 {
			confidence = missingConfidence
		}

		result.Groups = append(result.Groups, &Group{Messages: groupMsgs})
		result.Meta = append(result.Meta, GroupMeta{
			Topic:          g.MainTopic,
			KeyIdentifiers: g.KeyIdentifiers,
			Confidence:     confidence,
		})
	}

	// Potential merges are batch-local group references; translate them to
	// global group indices. Informational only.
	for _, h := range parsed.PotentialMerges {
		result.Hints = append(result.Hints, MergeHint{
			Group1:     groupIndexBase + h.Group1,
			Group2:     groupIndexBase + h.Group2,
			Reason:     h.Reason,
			Confidence: h.Confidence,
		})
	}
}

// fallbackSingletons makes every message of a failed batch its own group.
func (e *GroupingEngine) fallbackSingletons(msgs []*email.Message, offset, size int, result *GroupingResult) {
	for i := 0; i < size; i++ {
		global := offset + i
		if global >= len(msgs) {
			break
		}
		result.Groups = append(result.Groups, &Group{Messages: []*email.Message{msgs[global]}})
		result.Meta = append(result.Meta, GroupMeta{Confidence: fallbackConfidence})
	}
}
