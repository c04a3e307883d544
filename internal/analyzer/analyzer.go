package analyzer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/thread"
)

var analyzerTracer = otel.Tracer("porthealth.analyzer")

// Config aggregates the settings of all analysis stages.
type Config struct {
	BatchSize int
	Scoring   ScoringConfig
	Assembly  AssemblerConfig
	Tracking  response.Config
}

// DefaultConfig returns the stock analysis settings.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Scoring:   DefaultScoringConfig(),
		Assembly:  DefaultAssemblerConfig(),
	}
}

// Analyzer runs the full multi-pass reconstruction pipeline: grouping,
// connection scoring, merging, assembly.
type Analyzer struct {
	grouping  *GroupingEngine
	scorer    *ConnectionScorer
	assembler *Assembler
	logger    *zap.Logger
}

// New wires an Analyzer around a single oracle client.
func New(client llm.Client, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	matcher := response.NewMatcher(client, logger)
	tracker := response.NewTracker(matcher, cfg.Tracking, logger)
	return &Analyzer{
		grouping:  NewGroupingEngine(client, cfg.BatchSize, logger),
		scorer:    NewConnectionScorer(client, matcher, cfg.Scoring, logger),
		assembler: NewAssembler(client, tracker, cfg.Assembly, logger),
		logger:    logger,
	}
}

// AnalyzeThreads reconstructs conversation threads from a message corpus.
// Messages without timestamps are dropped; the rest are grouped, cross-scored,
// merged and assembled into Thread aggregates.
func (a *Analyzer) AnalyzeThreads(ctx context.Context, msgs []*email.Message) []*thread.Thread {
	ctx, span := analyzerTracer.Start(ctx, "analyzer.analyze_threads")
	defer span.End()
	span.SetAttributes(attribute.Int("messages.count", len(msgs)))

	valid := make([]*email.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.HasTimestamp() {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	result := a.grouping.GroupMessages(ctx, valid)
	a.logger.Info("initial grouping complete",
		zap.Int("messages", len(valid)),
		zap.Int("groups", len(result.Groups)),
	)

	connections := a.scorer.FindConnections(ctx, result.Groups)
	merged := MergeConnected(result.Groups, connections)
	a.logger.Info("cross-group merge complete",
		zap.Int("connections", len(connections)),
		zap.Int("threads", len(merged)),
	)

	threads := make([]*thread.Thread, 0, len(merged))
	for _, g := range merged {
		t := a.assembler.Assemble(ctx, g)
		if t == nil {
			continue
		}
		threads = append(threads, t)
	}

	span.SetAttributes(attribute.Int("threads.count", len(threads)))
	return threads
}
