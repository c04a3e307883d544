// Package llm provides the semantic-judgment and embedding capability the
// analysis engine depends on. The engine treats it as an oracle: every call
// may fail, and every caller has a documented conservative fallback.
package llm

import (
	"context"
	"strings"
)

// GenerateOptions tunes a single generation request.
type GenerateOptions struct {
	// SystemPrompt is an optional system instruction.
	SystemPrompt string

	// Temperature controls sampling. Zero means the provider default.
	Temperature float64
}

// Client is the generation and embedding capability.
type Client interface {
	// Generate produces free text for a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateEmbedding produces a fixed-length vector for a text.
	// Returns an empty vector, not an error, when the text is empty.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// BatchGenerate runs Generate for each prompt. A failed prompt yields
	// an empty string in its slot; the batch itself never fails.
	BatchGenerate(ctx context.Context, prompts []string, opts GenerateOptions) ([]string, error)
}

// ValidationResult is the outcome of a validator round.
type ValidationResult struct {
	// Valid is false when the validator returned malformed output. A false
	// result carries no usable score.
	Valid bool `json:"valid"`

	Score       float64  `json:"score"`
	Concerns    []string `json:"concerns,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Validator scores structured data against an instruction with an
// independent model.
type Validator interface {
	Validate(ctx context.Context, data any, instruction string) (ValidationResult, error)
}

// StripFences removes a surrounding markdown code fence from model output.
// Models routinely wrap JSON in ```json blocks despite instructions.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsYes reports whether a yes/no judgment response affirms.
func IsYes(response string) bool {
	return strings.Contains(strings.ToUpper(response), "YES")
}
