package response

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config holds the response-tracking thresholds.
type Config struct {
	// CriticalDays is the number of days after which an unanswered
	// question is flagged critical.
	CriticalDays int
}

// DefaultConfig returns the default tracking thresholds.
func DefaultConfig() Config {
	return Config{CriticalDays: 7}
}

// Tracker runs response-chain, conversation-flow and daily-status analysis
// over a merged, chronologically-ordered group of messages.
type Tracker struct {
	matcher *Matcher
	cfg     Config
	logger  *zap.Logger
}

// NewTracker creates a response tracker.
func NewTracker(matcher *Matcher, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.CriticalDays == 0 {
		cfg.CriticalDays = DefaultConfig().CriticalDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{matcher: matcher, cfg: cfg, logger: logger}
}

// AnalyzeChains scans messages in time order, tracking every needs-answer
// question and matching later answers against the still-open entries.
func (t *Tracker) AnalyzeChains(ctx context.Context, msgs []*email.Message) ChainAnalysis {
	sorted := sortedWithDates(msgs)

	var tracked []TrackedQuestion

	for _, msg := range sorted {
		for _, q := range msg.OpenQuestions() {
			tracked = append(tracked, TrackedQuestion{
				Question:       q.Text,
				AskedBy:        msg.From,
				AskedDate:      msg.Date,
				AskedInSubject: msg.Subject,
			})
		}

		for _, answer := range msg.Metadata.AnswersProvided {
			for i := range tracked {
				if tracked[i].Answered {
					continue
				}
				if t.matcher.Matches(ctx, tracked[i].Question, answer.AnswersQuestion) {
					tracked[i].Answered = true
					tracked[i].Answer = answer.Text
					tracked[i].AnsweredBy = msg.From
					tracked[i].AnsweredDate = msg.Date
					tracked[i].ResponseTimeDays = wholeDays(tracked[i].AskedDate, msg.Date)
					break
				}
			}
		}
	}

	analysis := ChainAnalysis{
		AllQuestions:   tracked,
		TotalQuestions: len(tracked),
	}

	var responseDays []int
	now := timeNow()
	for _, q := range tracked {
		if q.Answered {
			analysis.AnsweredCount++
			responseDays = append(responseDays, q.ResponseTimeDays)
		} else {
			analysis.UnansweredQuestions = append(analysis.UnansweredQuestions, q)
			if waited := wholeDays(q.AskedDate, now); waited > analysis.LongestUnansweredDays {
				analysis.LongestUnansweredDays = waited
			}
		}
	}
	analysis.UnansweredCount = len(analysis.UnansweredQuestions)

	if len(responseDays) > 0 {
		sum := 0
		for _, d := range responseDays {
			sum += d
		}
		avg := float64(sum) / float64(len(responseDays))
		analysis.AverageResponseTimeDays = &avg
	}

	return analysis
}

// sortedWithDates returns a chronologically sorted copy, dropping messages
// without timestamps.
func sortedWithDates(msgs []*email.Message) []*email.Message {
	out := make([]*email.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.HasTimestamp() {
			out = append(out, m)
		}
	}
	email.SortByDate(out)
	return out
}

// wholeDays returns the number of whole days between two timestamps.
func wholeDays(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
