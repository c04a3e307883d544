package response

import (
	"context"
	"sort"
	"time"

	"github.com/refurd/portfolio-health-system/internal/email"
)

// AnalyzeDaily groups messages by calendar day and tracks same-day and
// cross-day question resolution.
func (t *Tracker) AnalyzeDaily(ctx context.Context, msgs []*email.Message) DailyAnalysis {
	sorted := sortedWithDates(msgs)

	byDay := make(map[string][]*email.Message)
	var dayKeys []string
	for _, msg := range sorted {
		key := dayKey(msg.Date)
		if _, ok := byDay[key]; !ok {
			dayKeys = append(dayKeys, key)
		}
		byDay[key] = append(byDay[key], msg)
	}
	sort.Strings(dayKeys)

	dailyStatus := make(map[string]DayStatus, len(dayKeys))
	for _, key := range dayKeys {
		dailyStatus[key] = t.analyzeDay(ctx, byDay[key])
	}

	today := startOfDay(timeNow())
	var stale []StaleQuestion
	for _, key := range dayKeys {
		day, err := time.ParseInLocation("2006-01-02", key, today.Location())
		if err != nil || !day.Before(today) {
			continue
		}

		for _, q := range dailyStatus[key].Questions {
			if q.AnsweredSameDay {
				continue
			}
			if t.answeredOnLaterDay(ctx, q.Question, day, dayKeys, byDay) {
				continue
			}

			daysWaiting := int(today.Sub(day).Hours() / 24)
			stale = append(stale, StaleQuestion{
				Question:    q.Question,
				AskedBy:     q.AskedBy,
				AskedOn:     key,
				DaysWaiting: daysWaiting,
				Critical:    daysWaiting > t.cfg.CriticalDays,
			})
		}
	}

	responseTimes := make(map[string]DayResponseTimes)
	for key, status := range dailyStatus {
		if status.AverageResponseTimeHours == nil {
			continue
		}
		rate := 0.0
		if status.TotalQuestions > 0 {
			rate = float64(status.AnsweredSameDay) / float64(status.TotalQuestions)
		}
		responseTimes[key] = DayResponseTimes{
			AvgHours:     *status.AverageResponseTimeHours,
			ResponseRate: rate,
		}
	}

	return DailyAnalysis{
		DailyStatus:        dailyStatus,
		StillUnanswered:    stale,
		ResponseTimesByDay: responseTimes,
	}
}

// analyzeDay tracks the questions asked within one calendar day and checks
// them for same-day answers.
func (t *Tracker) analyzeDay(ctx context.Context, dayMsgs []*email.Message) DayStatus {
	var questions []DayQuestion
	for _, msg := range dayMsgs {
		for _, q := range msg.OpenQuestions() {
			questions = append(questions, DayQuestion{
				Question: q.Text,
				AskedBy:  msg.From,
				AskedAt:  msg.Date,
				Subject:  msg.Subject,
			})
		}
	}

	for i := range questions {
		for _, msg := range dayMsgs {
			// An answer only counts when it arrives after the question.
			if !msg.Date.After(questions[i].AskedAt) {
				continue
			}
			for _, answer := range msg.Metadata.AnswersProvided {
				if t.matcher.Matches(ctx, questions[i].Question, answer.AnswersQuestion) {
					questions[i].AnsweredSameDay = true
					questions[i].AnsweredBy = msg.From
					questions[i].AnsweredAt = msg.Date
					break
				}
			}
			if questions[i].AnsweredSameDay {
				break
			}
		}
	}

	status := DayStatus{
		Questions:      questions,
		TotalQuestions: len(questions),
		MessageCount:   len(dayMsgs),
	}

	var hours []float64
	for _, q := range questions {
		if q.AnsweredSameDay {
			status.AnsweredSameDay++
			hours = append(hours, q.AnsweredAt.Sub(q.AskedAt).Hours())
		}
	}
	status.UnansweredSameDay = status.TotalQuestions - status.AnsweredSameDay
	status.HasPendingResponse = status.UnansweredSameDay > 0

	if len(hours) > 0 {
		sum := 0.0
		for _, h := range hours {
			sum += h
		}
		avg := sum / float64(len(hours))
		status.AverageResponseTimeHours = &avg
	}

	return status
}

// answeredOnLaterDay checks whether any message on a day after asked answers
// the question.
func (t *Tracker) answeredOnLaterDay(ctx context.Context, question string, asked time.Time, dayKeys []string, byDay map[string][]*email.Message) bool {
	for _, key := range dayKeys {
		day, err := time.ParseInLocation("2006-01-02", key, asked.Location())
		if err != nil || !day.After(asked) {
			continue
		}
		for _, msg := range byDay[key] {
			for _, answer := range msg.Metadata.AnswersProvided {
				if t.matcher.Matches(ctx, question, answer.AnswersQuestion) {
					return true
				}
			}
		}
	}
	return false
}
