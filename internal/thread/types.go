// Package thread defines the persisted conversation aggregate produced by
// the analysis engine. Threads are created once per run and fully replace
// any prior values; nothing mutates them after assembly.
package thread

import (
	"time"

	"github.com/refurd/portfolio-health-system/internal/response"
)

// Status is the lifecycle state of a thread.
type Status string

const (
	// StatusActive is the initial state.
	StatusActive Status = "active"
	// StatusStalled indicates no activity beyond the stall threshold.
	StatusStalled Status = "stalled"
	// StatusBlocked indicates too many unresolved questions.
	StatusBlocked Status = "blocked"
	// StatusCritical indicates at least one critical-impact blocker.
	StatusCritical Status = "critical"
)

// Impact levels for blockers.
const (
	ImpactCritical = "critical"
	ImpactHigh     = "high"
	ImpactMedium   = "medium"
	ImpactLow      = "low"
)

// UnresolvedQuestion is a question that remained unanswered after the
// response-chain scan, enriched with thread-level context.
type UnresolvedQuestion struct {
	Question       string    `json:"question"`
	AskedBy        string    `json:"asked_by"`
	AskedDate      time.Time `json:"asked_date"`
	AskedInSubject string    `json:"asked_in_subject"`
	DaysUnanswered int       `json:"days_unanswered"`

	// RequiresExternalResponse is true when the asker is not an internal
	// participant, so resolution depends on someone outside the
	// organization.
	RequiresExternalResponse bool `json:"requires_external_response"`
}

// Blocker is an obstacle identified in a thread, either by the oracle or
// synthesized from response tracking.
type Blocker struct {
	Description    string `json:"blocker"`
	Impact         string `json:"impact"`
	IdentifiedBy   string `json:"identified_by"`
	Date           string `json:"date"`
	Details        string `json:"details,omitempty"`
	QuestionsCount int    `json:"questions_count,omitempty"`
}

// Continuation is a hint that a conversation continued under another
// subject, typically via forwarding.
type Continuation struct {
	Type            string `json:"type"`
	OriginalSubject string `json:"original_subject"`
	NewSubject      string `json:"new_subject"`
	ForwardedBy     string `json:"forwarded_by"`
	Date            string `json:"date,omitempty"`
}

// ResponsePattern summarizes reply latencies within a thread.
type ResponsePattern struct {
	// AverageResponseTimeHours is nil when no reply pair was found.
	AverageResponseTimeHours *float64 `json:"average_response_time_hours"`
	FastestResponseHours     *float64 `json:"fastest_response_hours"`
	SlowestResponseHours     *float64 `json:"slowest_response_hours"`
	ResponseCount            int      `json:"response_count"`
	ActiveResponders         []string `json:"active_responders"`
}

// Metadata carries the response-analysis results, per-day status and
// continuation hints for a thread.
type Metadata struct {
	ResponseAnalysis   response.ChainAnalysis `json:"response_analysis"`
	ConversationFlows  []response.Flow        `json:"conversation_flows"`
	WaitingForResponse []response.Waiting     `json:"waiting_for_response"`

	AverageResponseTimeDays *float64 `json:"average_response_time_days"`
	QuestionsAnsweredRatio  float64  `json:"questions_answered_ratio"`

	ThreadContinuations []Continuation  `json:"thread_continuations,omitempty"`
	ResponsePattern     ResponsePattern `json:"response_pattern"`
	EscalationNeeded    bool            `json:"escalation_needed"`

	DailyStatus        map[string]response.DayStatus        `json:"daily_response_status"`
	UnansweredToday    []response.StaleQuestion             `json:"unanswered_today"`
	ResponseTimesByDay map[string]response.DayResponseTimes `json:"response_times_by_day"`
}

// Thread is the persisted conversation aggregate. It owns its messages by id
// only; the engine never mutates messages after assembly.
type Thread struct {
	ID                   string               `json:"id,omitempty"`
	MessageIDs           []string             `json:"email_ids"`
	Subject              string               `json:"subject"`
	Participants         []string             `json:"participants"`
	ExternalParticipants []string             `json:"external_participants"`
	StartDate            time.Time            `json:"start_date"`
	LastActivity         time.Time            `json:"last_activity"`
	Status               Status               `json:"status"`
	PriorityScore        float64              `json:"priority_score"`
	UnresolvedQuestions  []UnresolvedQuestion `json:"unresolved_questions"`
	Blockers             []Blocker            `json:"blockers"`
	Attachments          []string             `json:"attachments"`
	Metadata             Metadata             `json:"metadata"`
}

// DaysSince returns whole days between the thread's last activity and now.
func (t *Thread) DaysSince(now time.Time) int {
	if t.LastActivity.IsZero() {
		return 0
	}
	d := int(now.Sub(t.LastActivity).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
