package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/llm/llmtest"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

func newAssembler(client llm.Client) *Assembler {
	tracker := response.NewTracker(response.NewMatcher(client, nil), response.Config{}, nil)
	return NewAssembler(client, tracker, AssemblerConfig{OrgDomain: "x.hu"}, nil)
}

// daysAgo keeps test fixtures anchored to the real clock so day arithmetic
// matches what Assemble computes.
func daysAgo(n int) time.Time {
	return time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
}

func needsAnswer(text string) email.Question {
	return email.Question{Text: text, NeedsAnswer: true}
}

func TestAssembleNilWithoutTimestamps(t *testing.T) {
	asm := newAssembler(nil)
	g := &Group{Messages: []*email.Message{
		{ID: "a", From: "anna@x.hu", Subject: "Undated"},
	}}
	assert.Nil(t, asm.Assemble(context.Background(), g))
}

func TestAssembleActiveThread(t *testing.T) {
	asm := newAssembler(nil)
	g := &Group{Messages: []*email.Message{
		{
			ID: "q", From: "anna@x.hu", To: []string{"bela@x.hu"},
			Subject: "Deadline", Date: daysAgo(2),
			Attachments: []string{"plan.pdf"},
			Metadata: email.Metadata{
				QuestionsAsked: []email.Question{needsAnswer("When is the deadline?")},
			},
		},
		{
			ID: "a", From: "bela@x.hu", To: []string{"anna@x.hu", "partner@ext.com"},
			Subject: "Re: Deadline", Date: daysAgo(1),
			Attachments: []string{"plan.pdf", "timeline.xlsx"},
			Metadata: email.Metadata{
				ReplyToSubject: "Deadline",
				ReplyToSender:  "anna@x.hu",
				AnswersProvided: []email.Answer{
					{Text: "Friday", AnswersQuestion: "when is the deadline"},
				},
			},
		},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)

	assert.Equal(t, thread.StatusActive, th.Status)
	assert.Equal(t, "Deadline", th.Subject)
	assert.Equal(t, []string{"q", "a"}, th.MessageIDs)
	assert.Equal(t, []string{"anna@x.hu", "bela@x.hu", "partner@ext.com"}, th.Participants)
	assert.Equal(t, []string{"partner@ext.com"}, th.ExternalParticipants)
	assert.Equal(t, []string{"plan.pdf", "timeline.xlsx"}, th.Attachments)
	assert.Empty(t, th.UnresolvedQuestions)
	assert.Empty(t, th.Blockers)
	assert.InDelta(t, 1.0, th.Metadata.QuestionsAnsweredRatio, 1e-9)
	assert.False(t, th.Metadata.EscalationNeeded)
}

func TestAssembleNoQuestionsRatioIsOne(t *testing.T) {
	asm := newAssembler(nil)
	g := &Group{Messages: []*email.Message{
		{ID: "a", From: "anna@x.hu", Subject: "FYI", Date: daysAgo(1)},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	assert.InDelta(t, 1.0, th.Metadata.QuestionsAnsweredRatio, 1e-9)
}

func TestAssembleStalledWinsOverBlocked(t *testing.T) {
	asm := newAssembler(nil)
	questions := []email.Question{
		needsAnswer("Q one?"), needsAnswer("Q two?"),
		needsAnswer("Q three?"), needsAnswer("Q four?"),
	}
	g := &Group{Messages: []*email.Message{
		{
			ID: "q", From: "anna@x.hu", Subject: "Open items", Date: daysAgo(10),
			Metadata: email.Metadata{QuestionsAsked: questions},
		},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	assert.Equal(t, thread.StatusStalled, th.Status)
	assert.Len(t, th.UnresolvedQuestions, 4)
}

func TestAssembleBlockedOnOpenQuestions(t *testing.T) {
	asm := newAssembler(nil)
	questions := []email.Question{
		needsAnswer("Q one?"), needsAnswer("Q two?"),
		needsAnswer("Q three?"), needsAnswer("Q four?"),
	}
	g := &Group{Messages: []*email.Message{
		{
			ID: "q", From: "partner@ext.com", Subject: "Open items", Date: daysAgo(1),
			Metadata: email.Metadata{QuestionsAsked: questions},
		},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	assert.Equal(t, thread.StatusBlocked, th.Status)

	require.Len(t, th.UnresolvedQuestions, 4)
	q := th.UnresolvedQuestions[0]
	assert.Equal(t, "partner@ext.com", q.AskedBy)
	assert.Equal(t, 1, q.DaysUnanswered)
	assert.True(t, q.RequiresExternalResponse)
}

func TestAssembleCriticalFromWaitingBlocker(t *testing.T) {
	asm := newAssembler(nil)
	g := &Group{Messages: []*email.Message{
		{
			ID: "q", From: "anna@x.hu", Subject: "Server access", Date: daysAgo(9),
			Metadata: email.Metadata{
				QuestionsAsked: []email.Question{needsAnswer("Can I get access?")},
			},
		},
		{ID: "ack", From: "bela@x.hu", Subject: "Re: Server access", Date: daysAgo(0)},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	assert.Equal(t, thread.StatusCritical, th.Status)

	require.Len(t, th.Blockers, 1)
	b := th.Blockers[0]
	assert.Equal(t, "No response to questions from anna@x.hu", b.Description)
	assert.Equal(t, thread.ImpactCritical, b.Impact)
	assert.Equal(t, "system", b.IdentifiedBy)
	assert.Equal(t, 1, b.QuestionsCount)
}

func TestAssembleEscalationNeeded(t *testing.T) {
	asm := newAssembler(nil)
	g := &Group{Messages: []*email.Message{
		{
			ID: "q", From: "anna@x.hu", Subject: "Pending decision", Date: daysAgo(6),
			Metadata: email.Metadata{
				QuestionsAsked: []email.Question{needsAnswer("Which vendor do we pick?")},
			},
		},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)

	// Six idle days with an open question: escalate, but the waiting
	// blocker stays at high impact so the thread is not yet critical.
	assert.True(t, th.Metadata.EscalationNeeded)
	assert.Equal(t, thread.StatusActive, th.Status)
	require.Len(t, th.Blockers, 1)
	assert.Equal(t, thread.ImpactHigh, th.Blockers[0].Impact)
}

func TestAssembleParsesOracleBlockers(t *testing.T) {
	stub := &llmtest.StubClient{Responses: []string{
		"```json\n[{\"blocker\": \"Waiting for security review\", \"impact\": \"high\", \"identified_by\": \"anna@x.hu\", \"date\": \"2026-03-02\"}]\n```",
	}}
	asm := newAssembler(stub)
	g := &Group{Messages: []*email.Message{
		{ID: "a", From: "anna@x.hu", Subject: "Release", Date: daysAgo(1)},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	require.Len(t, th.Blockers, 1)
	assert.Equal(t, "Waiting for security review", th.Blockers[0].Description)
	assert.Equal(t, thread.ImpactHigh, th.Blockers[0].Impact)
}

func TestAssembleIgnoresUnparseableBlockerOutput(t *testing.T) {
	stub := &llmtest.StubClient{Responses: []string{"no blockers that I can see"}}
	asm := newAssembler(stub)
	g := &Group{Messages: []*email.Message{
		{ID: "a", From: "anna@x.hu", Subject: "Release", Date: daysAgo(1)},
	}}

	th := asm.Assemble(context.Background(), g)
	require.NotNil(t, th)
	assert.Empty(t, th.Blockers)
}

func TestWaitingBlockersThresholds(t *testing.T) {
	asm := newAssembler(nil)
	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	blockers := asm.waitingBlockers([]response.Waiting{
		{WaitingFrom: "short@x.hu", DaysWaiting: 3, SentDate: sent},
		{WaitingFrom: "high@x.hu", Subject: "Budget", DaysWaiting: 5, SentDate: sent,
			Questions: []email.Question{needsAnswer("Approved?")}},
		{WaitingFrom: "critical@x.hu", DaysWaiting: 9, SentDate: sent},
	})

	require.Len(t, blockers, 2)
	assert.Equal(t, thread.ImpactHigh, blockers[0].Impact)
	assert.Equal(t, "2026-03-01", blockers[0].Date)
	assert.Contains(t, blockers[0].Details, "Waiting 5 days for response on: Budget")
	assert.Equal(t, thread.ImpactCritical, blockers[1].Impact)
}

func TestFindContinuations(t *testing.T) {
	msgs := []*email.Message{
		{From: "anna@x.hu", Subject: "Status", Date: daysAgo(3)},
		{
			From: "bela@x.hu", Subject: "Fwd: Status", Date: daysAgo(2),
			Metadata: email.Metadata{ReplyToSubject: "Status"},
		},
		{
			From: "cili@x.hu", Subject: "Follow-up", Date: daysAgo(1),
			Metadata: email.Metadata{QuotedText: "> original discussion"},
		},
	}

	conts := findContinuations(msgs)
	require.Len(t, conts, 2)
	assert.Equal(t, "Status", conts[0].OriginalSubject)
	assert.Equal(t, "Fwd: Status", conts[0].NewSubject)
	assert.Equal(t, "bela@x.hu", conts[0].ForwardedBy)
	// Quoted text without reply metadata falls back to its own subject.
	assert.Equal(t, "Follow-up", conts[1].OriginalSubject)
}

func TestAnalyzeResponsePattern(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []*email.Message{
		{From: "anna@x.hu", Subject: "Plan", Date: base},
		{
			From: "bela@x.hu", Subject: "Re: Plan", Date: base.Add(4 * time.Hour),
			Metadata: email.Metadata{ReplyToSender: "anna@x.hu"},
		},
		{
			From: "cili@x.hu", Subject: "Re: Plan", Date: base.Add(12 * time.Hour),
			Metadata: email.Metadata{ReplyToSubject: "Plan"},
		},
	}

	p := analyzeResponsePattern(msgs)

	assert.Equal(t, 2, p.ResponseCount)
	assert.Equal(t, []string{"bela@x.hu", "cili@x.hu"}, p.ActiveResponders)
	require.NotNil(t, p.AverageResponseTimeHours)
	assert.InDelta(t, 6.0, *p.AverageResponseTimeHours, 1e-9)
	assert.InDelta(t, 4.0, *p.FastestResponseHours, 1e-9)
	assert.InDelta(t, 8.0, *p.SlowestResponseHours, 1e-9)
}

func TestAnalyzeResponsePatternNoReplies(t *testing.T) {
	p := analyzeResponsePattern([]*email.Message{
		{From: "anna@x.hu", Subject: "One", Date: daysAgo(2)},
		{From: "bela@x.hu", Subject: "Two", Date: daysAgo(1)},
	})

	assert.Zero(t, p.ResponseCount)
	assert.Nil(t, p.AverageResponseTimeHours)
	assert.Empty(t, p.ActiveResponders)
}

func TestFirstSubjectPlaceholder(t *testing.T) {
	msgs := []*email.Message{{From: "anna@x.hu", Date: daysAgo(1)}}
	assert.Equal(t, "No Subject", firstSubject(msgs))
}
