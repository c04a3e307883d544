package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "PORTHEALTH_"

// defaultYAML holds the stock configuration. File and environment values
// override it.
var defaultYAML = []byte(`
logging:
  level: info
  format: json

openai:
  model: gpt-4.1-mini
  embedding_model: text-embedding-3-small

anthropic:
  model: claude-3-5-sonnet-20240620

analysis:
  batch_size: 30
  similarity_threshold: 0.85
  connection_threshold: 0.7
  priority_threshold: 0.7
  validation_rounds: 1
  concurrency: 4
  index_messages: false
  org_domain: ""
  attention_flags:
    - unresolved_questions
    - blocked_projects
    - escalated_issues
    - external_risks
    - deadline_risks
    - missing_responses
    - technical_debt
    - security_concerns

tracking:
  critical_days: 7
  max_days_without_response: 3

thread:
  stalled_after_days: 7
  blocked_question_threshold: 3
  escalation_after_days: 5

vectorstore:
  collection: porthealth_emails
`)

// Load loads configuration with the precedence (highest to lowest):
//
//  1. Environment variables (PORTHEALTH_OPENAI_API_KEY, PORTHEALTH_ANALYSIS_BATCH_SIZE, ...)
//  2. YAML config file, when configPath is non-empty
//  3. Built-in defaults
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and splitting on the first underscore:
//
//	PORTHEALTH_OPENAI_API_KEY     -> openai.api_key
//	PORTHEALTH_ANALYSIS_BATCH_SIZE -> analysis.batch_size
//	PORTHEALTH_LOGGING_LEVEL       -> logging.level
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// PORTHEALTH_OPENAI_API_KEY -> openai.api_key
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
