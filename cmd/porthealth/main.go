// Package main implements the porthealth CLI for portfolio email analysis.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refurd/portfolio-health-system/internal/analysis"
	"github.com/refurd/portfolio-health-system/internal/analyzer"
	"github.com/refurd/portfolio-health-system/internal/config"
	"github.com/refurd/portfolio-health-system/internal/email"
	"github.com/refurd/portfolio-health-system/internal/llm"
	"github.com/refurd/portfolio-health-system/internal/logging"
	"github.com/refurd/portfolio-health-system/internal/priority"
	"github.com/refurd/portfolio-health-system/internal/response"
	"github.com/refurd/portfolio-health-system/internal/search"
	"github.com/refurd/portfolio-health-system/internal/storage"
	"github.com/refurd/portfolio-health-system/internal/vectorstore"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// inputPath is the JSON message corpus.
	inputPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "porthealth",
	Short: "Portfolio health analysis over email archives",
	Long: `porthealth reconstructs conversation threads from an email archive,
tracks unanswered questions and blockers, and scores each thread for
attention priority.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&inputPath, "input", "", "path to JSON message corpus")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(searchCmd)
}

// app bundles the wired services for one invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Store
	analysis *analysis.Service
	search   *search.Service
}

// buildApp loads config and wires the full service graph.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		return nil, err
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		BaseURL:        cfg.OpenAI.BaseURL,
		Timeout:        cfg.OpenAI.Timeout,
		MaxRetries:     cfg.OpenAI.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generation client: %w", err)
	}

	validator, err := llm.NewAnthropicValidator(llm.AnthropicConfig{
		APIKey:     cfg.Anthropic.APIKey,
		Model:      cfg.Anthropic.Model,
		BaseURL:    cfg.Anthropic.BaseURL,
		Timeout:    cfg.Anthropic.Timeout,
		MaxRetries: cfg.Anthropic.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}

	store := storage.NewMemoryStore()

	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       cfg.VectorStore.Path,
		Compress:   cfg.VectorStore.Compress,
		Collection: cfg.VectorStore.Collection,
	}, client, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	scoring := analyzer.DefaultScoringConfig()
	if cfg.Analysis.SimilarityThreshold != 0 {
		scoring.EmbeddingSimilarityThreshold = cfg.Analysis.SimilarityThreshold
	}
	if cfg.Analysis.ConnectionThreshold != 0 {
		scoring.ConnectionThreshold = cfg.Analysis.ConnectionThreshold
	}

	az := analyzer.New(client, analyzer.Config{
		BatchSize: cfg.Analysis.BatchSize,
		Scoring:   scoring,
		Assembly: analyzer.AssemblerConfig{
			OrgDomain:                   cfg.Analysis.OrgDomain,
			StalledAfterDays:            cfg.Thread.StalledAfterDays,
			BlockedQuestionThreshold:    cfg.Thread.BlockedQuestionThreshold,
			MaxDaysWithoutResponse:      cfg.Tracking.MaxDaysWithoutResponse,
			CriticalDaysWithoutResponse: cfg.Tracking.CriticalDays,
			EscalationAfterDays:         cfg.Thread.EscalationAfterDays,
		},
		Tracking: response.Config{CriticalDays: cfg.Tracking.CriticalDays},
	}, logger)

	scorer := priority.NewScorer(client, validator, priority.Config{
		AttentionFlags:   cfg.Analysis.AttentionFlags,
		ValidationRounds: cfg.Analysis.ValidationRounds,
	}, logger)

	searcher := search.NewService(store, client, vectors, logger)

	svc := analysis.NewService(store, az, scorer, searcher, analysis.Config{
		PriorityThreshold: cfg.Analysis.PriorityThreshold,
		Concurrency:       cfg.Analysis.Concurrency,
		IndexMessages:     cfg.Analysis.IndexMessages,
	}, logger)

	return &app{cfg: cfg, logger: logger, store: store, analysis: svc, search: searcher}, nil
}

// loadMessages reads a JSON message corpus into the store.
func (a *app) loadMessages(cmd *cobra.Command) (int, error) {
	if inputPath == "" {
		return 0, fmt.Errorf("--input is required")
	}

	content, err := os.ReadFile(inputPath)
	if err != nil {
		return 0, fmt.Errorf("reading input %s: %w", inputPath, err)
	}

	var msgs []*email.Message
	if err := json.Unmarshal(content, &msgs); err != nil {
		return 0, fmt.Errorf("parsing input %s: %w", inputPath, err)
	}

	for _, m := range msgs {
		if _, err := a.store.InsertMessage(cmd.Context(), m); err != nil {
			return 0, fmt.Errorf("storing message: %w", err)
		}
	}
	return len(msgs), nil
}
