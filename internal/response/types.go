// Package response tracks questions and answers across a merged conversation
// group: who asked what, whether it was answered, how long answers took, and
// a per-calendar-day status breakdown.
package response

import (
	"time"

	"github.com/refurd/portfolio-health-system/internal/email"
)

// TrackedQuestion is one question followed through the response chain.
type TrackedQuestion struct {
	Question       string    `json:"question"`
	AskedBy        string    `json:"asked_by"`
	AskedDate      time.Time `json:"asked_date"`
	AskedInSubject string    `json:"asked_in_subject"`

	Answered     bool      `json:"answered"`
	Answer       string    `json:"answer,omitempty"`
	AnsweredBy   string    `json:"answered_by,omitempty"`
	AnsweredDate time.Time `json:"answered_date,omitempty"`

	// ResponseTimeDays is the whole-day latency between question and
	// answer. Only meaningful when Answered is true.
	ResponseTimeDays int `json:"response_time_days,omitempty"`
}

// ChainAnalysis is the output of the response-chain scan.
type ChainAnalysis struct {
	AllQuestions        []TrackedQuestion `json:"all_questions"`
	UnansweredQuestions []TrackedQuestion `json:"unanswered_questions"`
	TotalQuestions      int               `json:"total_questions"`
	AnsweredCount       int               `json:"answered_count"`
	UnansweredCount     int               `json:"unanswered_count"`

	// AverageResponseTimeDays is nil when no question was resolved.
	AverageResponseTimeDays *float64 `json:"average_response_time_days"`

	LongestUnansweredDays int `json:"longest_unanswered_days"`
}

// Flow is one reply edge found by conversation-flow analysis.
type Flow struct {
	OriginalSubject   string    `json:"original_subject"`
	OriginalFrom      string    `json:"original_from"`
	OriginalDate      time.Time `json:"original_date"`
	ReplyFrom         string    `json:"reply_from"`
	ReplyDate         time.Time `json:"reply_date"`
	ResponseTimeHours float64   `json:"response_time_hours"`
	ContainsAnswer    bool      `json:"contains_answer"`
}

// Waiting describes a sender whose question-bearing message has not received
// an answering reply.
type Waiting struct {
	WaitingFrom string           `json:"waiting_from"`
	Subject     string           `json:"subject"`
	SentDate    time.Time        `json:"sent_date"`
	DaysWaiting int              `json:"days_waiting"`
	Questions   []email.Question `json:"questions"`
}

// FlowAnalysis is the output of conversation-flow analysis.
type FlowAnalysis struct {
	Flows              []Flow    `json:"conversation_flows"`
	WaitingForResponse []Waiting `json:"waiting_for_response"`
}

// DayQuestion is a question asked on a particular calendar day, tracked for
// a same-day answer.
type DayQuestion struct {
	Question        string    `json:"question"`
	AskedBy         string    `json:"asked_by"`
	AskedAt         time.Time `json:"asked_at"`
	Subject         string    `json:"email_subject"`
	AnsweredSameDay bool      `json:"answered_same_day"`
	AnsweredBy      string    `json:"answered_by,omitempty"`
	AnsweredAt      time.Time `json:"answered_at,omitempty"`
}

// DayStatus summarizes one calendar day of a thread.
type DayStatus struct {
	Questions         []DayQuestion `json:"questions_asked"`
	TotalQuestions    int           `json:"total_questions"`
	AnsweredSameDay   int           `json:"answered_same_day"`
	UnansweredSameDay int           `json:"unanswered_same_day"`

	// AverageResponseTimeHours is nil when no same-day answer exists.
	AverageResponseTimeHours *float64 `json:"average_response_time_hours"`

	HasPendingResponse bool `json:"has_pending_response"`
	MessageCount       int  `json:"email_count"`
}

// StaleQuestion is a question from a past day that no later day answered.
type StaleQuestion struct {
	Question    string `json:"question"`
	AskedBy     string `json:"asked_by"`
	AskedOn     string `json:"asked_on"`
	DaysWaiting int    `json:"days_waiting"`
	Critical    bool   `json:"critical"`
}

// DayResponseTimes captures the response-time pattern of one day.
type DayResponseTimes struct {
	AvgHours     float64 `json:"avg_hours"`
	ResponseRate float64 `json:"response_rate"`
}

// DailyAnalysis is the output of the per-day breakdown.
type DailyAnalysis struct {
	// DailyStatus is keyed by ISO date (YYYY-MM-DD).
	DailyStatus map[string]DayStatus `json:"daily_status"`

	// StillUnanswered lists questions from days before the analysis day
	// that no later day answered.
	StillUnanswered []StaleQuestion `json:"unanswered_today"`

	// ResponseTimesByDay is keyed by ISO date, present only for days that
	// had at least one same-day answer.
	ResponseTimesByDay map[string]DayResponseTimes `json:"response_times_by_day"`
}

// dayKey formats a timestamp as its ISO calendar day.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// startOfDay truncates a timestamp to midnight.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
