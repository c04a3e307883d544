// Package analysis orchestrates a full portfolio run: load messages, clear
// derived data, reconstruct threads, score priorities, persist everything.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/refurd/portfolio-health-system/internal/analyzer"
	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/search"
	"github.com/refurd/portfolio-health-system/internal/storage"
)

var analysisTracer = otel.Tracer("porthealth.analysis")

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Config tunes a run.
type Config struct {
	// PriorityThreshold is the score above which an item counts as high
	// priority. Default: 0.7
	PriorityThreshold float64

	// Concurrency bounds parallel priority scoring. Default: 4
	Concurrency int

	// IndexMessages also indexes the corpus into the vector store so it
	// becomes searchable after the run.
	IndexMessages bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.PriorityThreshold == 0 {
		c.PriorityThreshold = 0.7
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

// RunResult summarizes one completed run.
type RunResult struct {
	RunID             string        `json:"run_id"`
	TotalMessages     int           `json:"total_emails"`
	ValidMessages     int           `json:"valid_emails"`
	Threads           int           `json:"threads"`
	HighPriority      int           `json:"high_priority"`
	PriorityThreshold float64       `json:"priority_threshold"`
	ScoringFailures   int           `json:"scoring_failures"`
	Duration          time.Duration `json:"duration"`
}

// Service runs the analysis pipeline over a stored message corpus.
type Service struct {
	store    storage.Store
	analyzer *analyzer.Analyzer
	scorer   *priority.Scorer
	searcher *search.Service
	cfg      Config
	logger   *zap.Logger
}

// NewService wires an analysis service. The searcher is optional; without it
// message indexing is skipped.
func NewService(store storage.Store, az *analyzer.Analyzer, scorer *priority.Scorer, searcher *search.Service, cfg Config, logger *zap.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		analyzer: az,
		scorer:   scorer,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run performs a clear-and-recompute analysis over all stored messages.
// Per-thread scoring failures are logged and skipped; the run itself fails
// only when loading or clearing fails, or when no valid message exists.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	ctx, span := analysisTracer.Start(ctx, "analysis.run")
	defer span.End()

	start := timeNow()
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("portfolio analysis started")

	msgs, err := s.store.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	valid := make([]*email.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.From != "" && m.HasTimestamp() {
			valid = append(valid, m)
		}
	}
	logger.Info("messages loaded",
		zap.Int("total", len(msgs)),
		zap.Int("valid", len(valid)),
	)
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid messages to analyze")
	}

	if err := s.store.ClearAnalysis(ctx); err != nil {
		return nil, fmt.Errorf("clearing previous analysis: %w", err)
	}

	if s.cfg.IndexMessages && s.searcher != nil {
		if err := s.searcher.IndexMessages(ctx, valid); err != nil {
			logger.Warn("message indexing failed, continuing without search", zap.Error(err))
		}
	}

	threads := s.analyzer.AnalyzeThreads(ctx, valid)
	logger.Info("threads reconstructed", zap.Int("count", len(threads)))

	for _, t := range threads {
		if _, err := s.store.InsertThread(ctx, t); err != nil {
			return nil, fmt.Errorf("storing thread: %w", err)
		}
	}

	var mu sync.Mutex
	highPriority := 0
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, t := range threads {
		g.Go(func() error {
			p := s.scorer.Score(gctx, t)
			if _, err := s.store.InsertPriority(gctx, p); err != nil {
				logger.Error("storing priority failed",
					zap.String("thread_id", t.ID),
					zap.Error(err),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			t.PriorityScore = p.Score

			if p.Score > s.cfg.PriorityThreshold {
				mu.Lock()
				highPriority++
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers swallow their own failures, the group never errors.
	_ = g.Wait()

	result := &RunResult{
		RunID:             runID,
		TotalMessages:     len(msgs),
		ValidMessages:     len(valid),
		Threads:           len(threads),
		HighPriority:      highPriority,
		PriorityThreshold: s.cfg.PriorityThreshold,
		ScoringFailures:   failures,
		Duration:          timeNow().Sub(start),
	}

	span.SetAttributes(
		attribute.Int("threads", result.Threads),
		attribute.Int("high_priority", result.HighPriority),
	)
	logger.Info("portfolio analysis complete",
		zap.Int("threads", result.Threads),
		zap.Int("high_priority", result.HighPriority),
		zap.Float64("priority_threshold", result.PriorityThreshold),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
