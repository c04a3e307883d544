// Package priority scores assembled threads for attention: per-flag attention
// scores, identified issues, recommendations, and an independently validated
// final score.
package priority

import "time"

// Issue is one problem the oracle identified in a thread.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// Priority is the persisted priority assessment of a thread.
type Priority struct {
	ID        string `json:"id,omitempty"`
	MessageID string `json:"email_id"`
	ThreadID  string `json:"thread_id"`

	// Score is the mean of the validator rounds, 0.0 when no round
	// produced a usable score.
	Score float64 `json:"score"`

	AttentionScores map[string]float64 `json:"attention_flags"`
	Issues          []Issue            `json:"issues"`
	Recommendations []string           `json:"recommendations"`

	DaysStalled          int       `json:"days_stalled"`
	LastActivity         time.Time `json:"last_activity"`
	Participants         []string  `json:"participants"`
	ExternalParticipants []string  `json:"external_participants"`
	Attachments          []string  `json:"attachments"`
	CreatedAt            time.Time `json:"created_at"`

	ValidationScores []float64 `json:"validation_scores"`
}

// DefaultAttentionFlags are the dimensions scored for every thread.
var DefaultAttentionFlags = []string{
	"unresolved_questions",
	"blocked_projects",
	"escalated_issues",
	"external_risks",
	"deadline_risks",
	"missing_responses",
	"technical_debt",
	"security_concerns",
}
