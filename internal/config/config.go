// Package config provides configuration loading for porthealth.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Logging     LoggingConfig     `koanf:"logging"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	Anthropic   AnthropicConfig   `koanf:"anthropic"`
	Analysis    AnalysisConfig    `koanf:"analysis"`
	Tracking    TrackingConfig    `koanf:"tracking"`
	Thread      ThreadConfig      `koanf:"thread"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
}

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"`
	Fields map[string]string `koanf:"fields"`
}

// OpenAIConfig configures the generation and embedding client.
type OpenAIConfig struct {
	APIKey         string        `koanf:"api_key"`
	Model          string        `koanf:"model"`
	EmbeddingModel string        `koanf:"embedding_model"`
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
}

// AnthropicConfig configures the independent validation client.
type AnthropicConfig struct {
	APIKey     string        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	// BatchSize is the grouping batch size.
	BatchSize int `koanf:"batch_size"`

	// SimilarityThreshold is the embedding-similarity cutoff for the
	// connection scorer.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// ConnectionThreshold is the score above which two groups merge.
	ConnectionThreshold float64 `koanf:"connection_threshold"`

	// PriorityThreshold is the score above which an item counts as high
	// priority.
	PriorityThreshold float64 `koanf:"priority_threshold"`

	// ValidationRounds is how many validator rounds feed a priority score.
	ValidationRounds int `koanf:"validation_rounds"`

	// Concurrency bounds parallel priority scoring.
	Concurrency int `koanf:"concurrency"`

	// IndexMessages also indexes the corpus into the vector store.
	IndexMessages bool `koanf:"index_messages"`

	// OrgDomain is the organization's email domain; participants outside
	// it are external.
	OrgDomain string `koanf:"org_domain"`

	// AttentionFlags are the priority dimensions scored per thread.
	AttentionFlags []string `koanf:"attention_flags"`
}

// TrackingConfig tunes response tracking.
type TrackingConfig struct {
	// CriticalDays flags an unanswered question critical past this age.
	CriticalDays int `koanf:"critical_days"`

	// MaxDaysWithoutResponse synthesizes a blocker past this wait.
	MaxDaysWithoutResponse int `koanf:"max_days_without_response"`
}

// ThreadConfig tunes the thread status machine.
type ThreadConfig struct {
	StalledAfterDays         int `koanf:"stalled_after_days"`
	BlockedQuestionThreshold int `koanf:"blocked_question_threshold"`
	EscalationAfterDays      int `koanf:"escalation_after_days"`
}

// VectorStoreConfig configures the embedded vector store.
type VectorStoreConfig struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Analysis.BatchSize < 0 {
		return fmt.Errorf("analysis.batch_size must not be negative")
	}
	if c.Analysis.SimilarityThreshold < 0 || c.Analysis.SimilarityThreshold > 1 {
		return fmt.Errorf("analysis.similarity_threshold must be in [0, 1]")
	}
	if c.Analysis.ConnectionThreshold < 0 || c.Analysis.ConnectionThreshold > 1 {
		return fmt.Errorf("analysis.connection_threshold must be in [0, 1]")
	}
	if c.Analysis.PriorityThreshold < 0 || c.Analysis.PriorityThreshold > 1 {
		return fmt.Errorf("analysis.priority_threshold must be in [0, 1]")
	}
	if c.Analysis.ValidationRounds < 0 {
		return fmt.Errorf("analysis.validation_rounds must not be negative")
	}
	if c.Tracking.CriticalDays < 0 {
		return fmt.Errorf("tracking.critical_days must not be negative")
	}
	return nil
}
