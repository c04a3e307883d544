// Package search provides query services over analyzed data: similarity
// search across indexed messages and read models derived from stored threads
// and priorities.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/storage"
	"github.com/refurd/portfolio-health-system/internal/thread"
	"github.com/refurd/portfolio-health-system/internal/vectorstore"
)

var searchTracer = otel.Tracer("porthealth.search")

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Hit is one similarity-search result.
type Hit struct {
	MessageID string  `json:"email_id"`
	Subject   string  `json:"subject"`
	From      string  `json:"from"`
	Date      string  `json:"date"`
	Score     float32 `json:"similarity_score"`
}

// RankedPriority is a priority assessment enriched with its thread.
type RankedPriority struct {
	Priority *priority.Priority `json:"priority"`
	Thread   *thread.Thread     `json:"thread,omitempty"`
}

// PendingQuestions lists a thread's questions still waiting for answers.
type PendingQuestions struct {
	ThreadID      string                   `json:"thread_id"`
	ThreadSubject string                   `json:"thread_subject"`
	Questions     []response.DayQuestion   `json:"questions,omitempty"`
	Critical      []response.StaleQuestion `json:"critical_unanswered,omitempty"`
	OldestDays    int                      `json:"oldest_unanswered_days"`
}

// TimelineDay is one day in a thread's response timeline.
type TimelineDay struct {
	Date              string   `json:"date"`
	QuestionsAsked    int      `json:"questions_asked"`
	AnsweredSameDay   int      `json:"answered_same_day"`
	UnansweredSameDay int      `json:"unanswered_same_day"`
	AverageHours      *float64 `json:"average_response_hours"`
	MessageCount      int      `json:"email_count"`
	HasPending        bool     `json:"has_pending"`
	ResponseRate      *float64 `json:"response_rate,omitempty"`
}

// Timeline is the day-by-day response history of a thread.
type Timeline struct {
	ThreadSubject            string                   `json:"thread_subject"`
	Days                     []TimelineDay            `json:"timeline"`
	TotalDays                int                      `json:"total_days"`
	DaysWithUnanswered       int                      `json:"days_with_unanswered"`
	AverageDailyResponseRate float64                  `json:"average_daily_response_rate"`
	WaitingForResponse       []response.Waiting       `json:"waiting_for_response"`
	UnansweredToday          []response.StaleQuestion `json:"unanswered_today"`
}

// RelatedThread is a thread sharing participants with another.
type RelatedThread struct {
	ThreadID           string        `json:"thread_id"`
	Subject            string        `json:"subject"`
	CommonParticipants []string      `json:"common_participants"`
	IsContinuation     bool          `json:"is_continuation"`
	LastActivity       time.Time     `json:"last_activity"`
	Status             thread.Status `json:"status"`
}

// Service answers queries over analyzed data.
type Service struct {
	store   storage.Store
	client  llm.Client
	vectors vectorstore.Store
	logger  *zap.Logger
}

// NewService creates a search service.
func NewService(store storage.Store, client llm.Client, vectors vectorstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, client: client, vectors: vectors, logger: logger}
}

// IndexMessages adds messages to the vector store so they become searchable.
// Messages carrying an embedding are stored as-is; the rest are embedded on
// insert.
func (s *Service) IndexMessages(ctx context.Context, msgs []*email.Message) error {
	ctx, span := searchTracer.Start(ctx, "search.index_messages")
	defer span.End()
	span.SetAttributes(attribute.Int("messages.count", len(msgs)))

	if len(msgs) == 0 {
		return nil
	}

	docs := make([]vectorstore.Document, 0, len(msgs))
	for _, m := range msgs {
		docs = append(docs, vectorstore.Document{
			ID:      m.ID,
			Content: fmt.Sprintf("%s\n%s", m.Subject, m.Body),
			Metadata: map[string]string{
				"subject": m.Subject,
				"from":    m.From,
				"date":    m.Date.Format(time.RFC3339),
			},
			Embedding: m.Embedding,
		})
	}

	if _, err := s.vectors.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("indexing messages: %w", err)
	}

	s.logger.Info("indexed messages", zap.Int("count", len(docs)))
	return nil
}

// SearchMessages embeds a query and returns the most similar messages.
func (s *Service) SearchMessages(ctx context.Context, query string, limit int) ([]Hit, error) {
	ctx, span := searchTracer.Start(ctx, "search.search_messages")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}

	embedding, err := s.client.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.vectors.SearchEmbedding(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			MessageID: r.ID,
			Subject:   r.Metadata["subject"],
			From:      r.Metadata["from"],
			Date:      r.Metadata["date"],
			Score:     r.Score,
		}
	}
	return hits, nil
}

// HighPriorities returns the top-scored priority assessments, each enriched
// with its thread when it still exists.
func (s *Service) HighPriorities(ctx context.Context, limit int) ([]RankedPriority, error) {
	if limit <= 0 {
		limit = 20
	}

	priorities, err := s.store.Priorities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading priorities: %w", err)
	}

	sort.SliceStable(priorities, func(i, j int) bool {
		return priorities[i].Score > priorities[j].Score
	})
	if len(priorities) > limit {
		priorities = priorities[:limit]
	}

	out := make([]RankedPriority, 0, len(priorities))
	for _, p := range priorities {
		ranked := RankedPriority{Priority: p}
		if p.ThreadID != "" {
			if t, err := s.store.Thread(ctx, p.ThreadID); err == nil {
				ranked.Thread = t
			}
		}
		out = append(out, ranked)
	}
	return out, nil
}

// PendingToday collects questions asked today without a same-day answer,
// plus critical stale questions from earlier days, across all threads.
// Sorted by the age of the oldest unanswered question, descending.
func (s *Service) PendingToday(ctx context.Context) ([]PendingQuestions, error) {
	threads, err := s.store.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading threads: %w", err)
	}

	todayKey := timeNow().Format("2006-01-02")
	var out []PendingQuestions

	for _, t := range threads {
		entry := PendingQuestions{ThreadID: t.ID, ThreadSubject: t.Subject}

		if day, ok := t.Metadata.DailyStatus[todayKey]; ok {
			for _, q := range day.Questions {
				if !q.AnsweredSameDay {
					entry.Questions = append(entry.Questions, q)
				}
			}
		}

		for _, stale := range t.Metadata.UnansweredToday {
			if !stale.Critical {
				continue
			}
			entry.Critical = append(entry.Critical, stale)
			if stale.DaysWaiting > entry.OldestDays {
				entry.OldestDays = stale.DaysWaiting
			}
		}

		if len(entry.Questions) > 0 || len(entry.Critical) > 0 {
			out = append(out, entry)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OldestDays > out[j].OldestDays
	})
	return out, nil
}

// ResponseTimeline builds the day-by-day response history of one thread.
func (s *Service) ResponseTimeline(ctx context.Context, threadID string) (*Timeline, error) {
	t, err := s.store.Thread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}

	keys := make([]string, 0, len(t.Metadata.DailyStatus))
	for k := range t.Metadata.DailyStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	days := make([]TimelineDay, 0, len(keys))
	pending := 0
	rateSum := 0.0
	for _, k := range keys {
		day := t.Metadata.DailyStatus[k]
		entry := TimelineDay{
			Date:              k,
			QuestionsAsked:    day.TotalQuestions,
			AnsweredSameDay:   day.AnsweredSameDay,
			UnansweredSameDay: day.UnansweredSameDay,
			AverageHours:      day.AverageResponseTimeHours,
			MessageCount:      day.MessageCount,
			HasPending:        day.HasPendingResponse,
		}
		if rt, ok := t.Metadata.ResponseTimesByDay[k]; ok {
			rate := rt.ResponseRate
			entry.ResponseRate = &rate
			rateSum += rate
		}
		if entry.HasPending {
			pending++
		}
		days = append(days, entry)
	}

	avgRate := 0.0
	if len(days) > 0 {
		avgRate = rateSum / float64(len(days))
	}

	return &Timeline{
		ThreadSubject:            t.Subject,
		Days:                     days,
		TotalDays:                len(days),
		DaysWithUnanswered:       pending,
		AverageDailyResponseRate: avgRate,
		WaitingForResponse:       t.Metadata.WaitingForResponse,
		UnansweredToday:          t.Metadata.UnansweredToday,
	}, nil
}

// RelatedThreads finds other threads sharing at least two participants with
// the given one, flagging continuations. Returns the top five by relevance.
func (s *Service) RelatedThreads(ctx context.Context, threadID string) ([]RelatedThread, error) {
	t, err := s.store.Thread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}

	participants := make(map[string]struct{}, len(t.Participants))
	for _, p := range t.Participants {
		participants[p] = struct{}{}
	}

	threads, err := s.store.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading threads: %w", err)
	}

	var out []RelatedThread
	for _, other := range threads {
		if other.ID == threadID {
			continue
		}

		var common []string
		for _, p := range other.Participants {
			if _, ok := participants[p]; ok {
				common = append(common, p)
			}
		}
		if len(common) < 2 {
			continue
		}

		isContinuation := false
		for _, cont := range other.Metadata.ThreadContinuations {
			if cont.OriginalSubject != "" && strings.Contains(t.Subject, cont.OriginalSubject) {
				isContinuation = true
				break
			}
		}

		out = append(out, RelatedThread{
			ThreadID:           other.ID,
			Subject:            other.Subject,
			CommonParticipants: common,
			IsContinuation:     isContinuation,
			LastActivity:       other.LastActivity,
			Status:             other.Status,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsContinuation != out[j].IsContinuation {
			return out[i].IsContinuation
		}
		return len(out[i].CommonParticipants) > len(out[j].CommonParticipants)
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out, nil
}
