package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// AssemblerConfig holds the assembly thresholds.
type AssemblerConfig struct {
	// OrgDomain is the organization's email domain; participants outside
	// it are external.
	OrgDomain string

	// StalledAfterDays marks a thread stalled past this inactivity.
	StalledAfterDays int

	// BlockedQuestionThreshold marks a thread blocked past this many
	// unresolved questions.
	BlockedQuestionThreshold int

	// MaxDaysWithoutResponse synthesizes a blocker for senders waiting
	// longer than this for an answer.
	MaxDaysWithoutResponse int

	// CriticalDaysWithoutResponse escalates a synthesized blocker to
	// critical impact.
	CriticalDaysWithoutResponse int

	// EscalationAfterDays flags a thread for escalation when idle longer
	// than this with open questions.
	EscalationAfterDays int

	// BlockerPromptMessageLimit caps how many messages the blocker prompt
	// includes.
	BlockerPromptMessageLimit int
}

// DefaultAssemblerConfig returns the stock assembly thresholds.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		StalledAfterDays:            7,
		BlockedQuestionThreshold:    3,
		MaxDaysWithoutResponse:      3,
		CriticalDaysWithoutResponse: 7,
		EscalationAfterDays:         5,
		BlockerPromptMessageLimit:   15,
	}
}

// Assembler combines grouping and response-tracking output into the
// persisted Thread shape.
type Assembler struct {
	client  llm.Client
	tracker *response.Tracker
	cfg     AssemblerConfig
	logger  *zap.Logger
}

// NewAssembler creates a thread assembler.
func NewAssembler(client llm.Client, tracker *response.Tracker, cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	def := DefaultAssemblerConfig()
	if cfg.StalledAfterDays == 0 {
		cfg.StalledAfterDays = def.StalledAfterDays
	}
	if cfg.BlockedQuestionThreshold == 0 {
		cfg.BlockedQuestionThreshold = def.BlockedQuestionThreshold
	}
	if cfg.MaxDaysWithoutResponse == 0 {
		cfg.MaxDaysWithoutResponse = def.MaxDaysWithoutResponse
	}
	if cfg.CriticalDaysWithoutResponse == 0 {
		cfg.CriticalDaysWithoutResponse = def.CriticalDaysWithoutResponse
	}
	if cfg.EscalationAfterDays == 0 {
		cfg.EscalationAfterDays = def.EscalationAfterDays
	}
	if cfg.BlockerPromptMessageLimit == 0 {
		cfg.BlockerPromptMessageLimit = def.BlockerPromptMessageLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{client: client, tracker: tracker, cfg: cfg, logger: logger}
}

// Assemble builds a Thread from a merged group. Returns nil when no message
// in the group carries a timestamp.
func (a *Assembler) Assemble(ctx context.Context, g *Group) *thread.Thread {
	msgs := make([]*email.Message, 0, len(g.Messages))
	for _, m := range g.Messages {
		if m.HasTimestamp() {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	email.SortByDate(msgs)

	chains := a.tracker.AnalyzeChains(ctx, msgs)
	flows := a.tracker.FindFlows(ctx, msgs)
	daily := a.tracker.AnalyzeDaily(ctx, msgs)

	participants, external := a.collectParticipants(msgs)
	attachments := collectAttachments(msgs)

	now := timeNow()
	unresolved := a.enrichUnresolved(chains.UnansweredQuestions, participants, now)

	blockers := a.findBlockers(ctx, msgs)
	blockers = append(blockers, a.waitingBlockers(flows.WaitingForResponse)...)

	lastDate := msgs[len(msgs)-1].Date
	daysSinceActivity := int(now.Sub(lastDate).Hours() / 24)

	status := thread.StatusActive
	switch {
	case daysSinceActivity > a.cfg.StalledAfterDays:
		status = thread.StatusStalled
	case len(unresolved) > a.cfg.BlockedQuestionThreshold:
		status = thread.StatusBlocked
	case hasCriticalBlocker(blockers):
		status = thread.StatusCritical
	}

	ratio := 1.0
	if chains.TotalQuestions > 0 {
		ratio = float64(chains.AnsweredCount) / float64(chains.TotalQuestions)
	}

	messageIDs := make([]string, len(msgs))
	for i, m := range msgs {
		messageIDs[i] = m.ID
	}

	return &thread.Thread{
		MessageIDs:           messageIDs,
		Subject:              firstSubject(msgs),
		Participants:         participants,
		ExternalParticipants: external,
		StartDate:            msgs[0].Date,
		LastActivity:         lastDate,
		Status:               status,
		UnresolvedQuestions:  unresolved,
		Blockers:             blockers,
		Attachments:          attachments,
		Metadata: thread.Metadata{
			ResponseAnalysis:        chains,
			ConversationFlows:       flows.Flows,
			WaitingForResponse:      flows.WaitingForResponse,
			AverageResponseTimeDays: chains.AverageResponseTimeDays,
			QuestionsAnsweredRatio:  ratio,
			ThreadContinuations:     findContinuations(msgs),
			ResponsePattern:         analyzeResponsePattern(msgs),
			EscalationNeeded:        daysSinceActivity > a.cfg.EscalationAfterDays && len(unresolved) > 0,
			DailyStatus:             daily.DailyStatus,
			UnansweredToday:         daily.StillUnanswered,
			ResponseTimesByDay:      daily.ResponseTimesByDay,
		},
	}
}

// collectParticipants gathers all senders/recipients and the subset outside
// the organization domain, both sorted for stable output.
func (a *Assembler) collectParticipants(msgs []*email.Message) (all, external []string) {
	allSet := make(map[string]struct{})
	externalSet := make(map[string]struct{})

	for _, m := range msgs {
		for _, p := range m.Participants() {
			if p == "" {
				continue
			}
			allSet[p] = struct{}{}
			if !m.IsInternal && !email.InDomain(p, a.cfg.OrgDomain) {
				externalSet[p] = struct{}{}
			}
		}
	}

	return sortedKeys(allSet), sortedKeys(externalSet)
}

// enrichUnresolved turns tracked unanswered questions into the persisted
// shape, deriving days-unanswered and the external-response flag.
func (a *Assembler) enrichUnresolved(unanswered []response.TrackedQuestion, participants []string, now time.Time) []thread.UnresolvedQuestion {
	internal := make(map[string]struct{})
	for _, p := range participants {
		if email.InDomain(p, a.cfg.OrgDomain) {
			internal[p] = struct{}{}
		}
	}

	out := make([]thread.UnresolvedQuestion, 0, len(unanswered))
	for _, q := range unanswered {
		days := int(now.Sub(q.AskedDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		_, isInternal := internal[q.AskedBy]
		out = append(out, thread.UnresolvedQuestion{
			Question:                 q.Question,
			AskedBy:                  q.AskedBy,
			AskedDate:                q.AskedDate,
			AskedInSubject:           q.AskedInSubject,
			DaysUnanswered:           days,
			RequiresExternalResponse: !isInternal,
		})
	}
	return out
}

const blockerPrompt = `Analyze these emails and identify ALL project blockers, including:
- Technical blockers
- Waiting for decisions
- Resource constraints
- External dependencies
- Unanswered critical questions

%s

Return JSON array of blockers with format:
[
    {
        "blocker": "clear description",
        "impact": "critical/high/medium/low",
        "identified_by": "email address or 'inferred'",
        "date": "YYYY-MM-DD",
        "details": "additional context"
    }
]`

// findBlockers asks the oracle to enumerate blockers for the group. Returns
// an empty list on any failure.
func (a *Assembler) findBlockers(ctx context.Context, msgs []*email.Message) []thread.Blocker {
	if a.client == nil || len(msgs) == 0 {
		return nil
	}

	resp, err := a.client.Generate(ctx, fmt.Sprintf(blockerPrompt, a.formatForPrompt(msgs)), llm.GenerateOptions{Temperature: 0.3})
	if err != nil {
		a.logger.Debug("blocker oracle failed, continuing without blockers",
			zap.Error(err),
		)
		return nil
	}

	var blockers []thread.Blocker
	if err := json.Unmarshal([]byte(llm.StripFences(resp)), &blockers); err != nil {
		return nil
	}
	return blockers
}

// waitingBlockers synthesizes blockers for senders who have waited too long
// for a response.
func (a *Assembler) waitingBlockers(waiting []response.Waiting) []thread.Blocker {
	var out []thread.Blocker
	for _, w := range waiting {
		if w.DaysWaiting <= a.cfg.MaxDaysWithoutResponse {
			continue
		}
		impact := thread.ImpactHigh
		if w.DaysWaiting > a.cfg.CriticalDaysWithoutResponse {
			impact = thread.ImpactCritical
		}
		out = append(out, thread.Blocker{
			Description:    fmt.Sprintf("No response to questions from %s", w.WaitingFrom),
			Impact:         impact,
			IdentifiedBy:   "system",
			Date:           w.SentDate.Format("2006-01-02"),
			Details:        fmt.Sprintf("Waiting %d days for response on: %s", w.DaysWaiting, w.Subject),
			QuestionsCount: len(w.Questions),
		})
	}
	return out
}

// formatForPrompt renders messages for the blocker prompt, bounded by the
// configured limit.
func (a *Assembler) formatForPrompt(msgs []*email.Message) string {
	limit := a.cfg.BlockerPromptMessageLimit
	if len(msgs) < limit {
		limit = len(msgs)
	}

	parts := make([]string, 0, limit)
	for _, m := range msgs[:limit] {
		body := m.Body
		if len(body) > 500 {
			body = body[:500]
		}
		replyTo := m.Metadata.ReplyToSubject
		if replyTo == "" {
			replyTo = "N/A"
		}
		parts = append(parts, fmt.Sprintf(`Date: %s
From: %s (%s)
To: %s
Subject: %s
Reply to: %s
Body preview: %s...
Has questions: %d questions
Has answers: %d answers
Attachments: %d`,
			m.Date.Format("2006-01-02 15:04"),
			m.FromName, m.From,
			strings.Join(m.To, ", "),
			m.Subject,
			replyTo,
			body,
			len(m.Metadata.QuestionsAsked),
			len(m.Metadata.AnswersProvided),
			len(m.Attachments)))
	}
	return strings.Join(parts, "\n---\n")
}

// findContinuations surfaces forwarded-subject continuation hints.
func findContinuations(msgs []*email.Message) []thread.Continuation {
	var out []thread.Continuation
	for _, m := range msgs {
		if !strings.Contains(m.Subject, "Fwd:") && m.Metadata.QuotedText == "" {
			continue
		}
		original := m.Metadata.ReplyToSubject
		if original == "" {
			original = m.Subject
		}
		out = append(out, thread.Continuation{
			Type:            "forwarded",
			OriginalSubject: original,
			NewSubject:      m.Subject,
			ForwardedBy:     m.From,
			Date:            m.Date.Format(time.RFC3339),
		})
	}
	return out
}

// analyzeResponsePattern derives reply-latency statistics from declared
// reply relationships.
func analyzeResponsePattern(msgs []*email.Message) thread.ResponsePattern {
	var hours []float64
	responders := make(map[string]struct{})

	for i := 1; i < len(msgs); i++ {
		current := msgs[i]
		for j := i - 1; j >= 0; j-- {
			prev := msgs[j]
			replySubject := current.Metadata.ReplyToSubject
			if current.Metadata.ReplyToSender == prev.From ||
				(replySubject != "" && prev.Subject != "" && strings.Contains(prev.Subject, replySubject)) {
				hours = append(hours, current.Date.Sub(prev.Date).Hours())
				responders[current.From] = struct{}{}
				break
			}
		}
	}

	pattern := thread.ResponsePattern{
		ResponseCount:    len(hours),
		ActiveResponders: sortedKeys(responders),
	}
	if len(hours) == 0 {
		return pattern
	}

	sum, fastest, slowest := 0.0, hours[0], hours[0]
	for _, h := range hours {
		sum += h
		if h < fastest {
			fastest = h
		}
		if h > slowest {
			slowest = h
		}
	}
	avg := sum / float64(len(hours))
	pattern.AverageResponseTimeHours = &avg
	pattern.FastestResponseHours = &fastest
	pattern.SlowestResponseHours = &slowest
	return pattern
}

// hasCriticalBlocker reports whether any blocker carries critical impact.
func hasCriticalBlocker(blockers []thread.Blocker) bool {
	for _, b := range blockers {
		if b.Impact == thread.ImpactCritical {
			return true
		}
	}
	return false
}

// collectAttachments deduplicates attachment paths across messages.
func collectAttachments(msgs []*email.Message) []string {
	set := make(map[string]struct{})
	for _, m := range msgs {
		for _, att := range m.Attachments {
			set[att] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// firstSubject returns the earliest message's subject, or a placeholder.
func firstSubject(msgs []*email.Message) string {
	if msgs[0].Subject != "" {
		return msgs[0].Subject
	}
	return "No Subject"
}

// sortedKeys returns the keys of a set in sorted order.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
