// Package llmtest provides deterministic in-memory implementations of the
// oracle interfaces for tests. No network calls, canned structured output.
package llmtest

import (
	"context"
	"sync"

	"github.com/refurd/portfolio-health-system/internal/llm"
)

// StubClient implements llm.Client with scripted behavior.
//
// GenerateFunc, when set, handles every Generate call. Otherwise responses
// are served from the Responses queue in order, repeating the last entry
// once the queue is exhausted. Err, when set, fails every call.
type StubClient struct {
	mu sync.Mutex

	GenerateFunc func(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
	EmbedFunc    func(ctx context.Context, text string) ([]float32, error)

	Responses []string
	Err       error

	// Prompts records every prompt passed to Generate, in call order.
	Prompts []string

	next int
}

// Generate returns the next scripted response.
func (s *StubClient) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)

	if s.Err != nil {
		return "", s.Err
	}
	if s.GenerateFunc != nil {
		return s.GenerateFunc(ctx, prompt, opts)
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	resp := s.Responses[min(s.next, len(s.Responses)-1)]
	s.next++
	return resp, nil
}

// GenerateEmbedding returns a scripted embedding, or nil.
func (s *StubClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	err := s.Err
	fn := s.EmbedFunc
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, text)
	}
	return nil, nil
}

// BatchGenerate runs Generate per prompt, blanking failed slots.
func (s *StubClient) BatchGenerate(ctx context.Context, prompts []string, opts llm.GenerateOptions) ([]string, error) {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		text, err := s.Generate(ctx, p, opts)
		if err != nil {
			continue
		}
		out[i] = text
	}
	return out, nil
}

// Calls returns how many Generate calls the stub has served.
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

// StubValidator implements llm.Validator with fixed results.
//
// Results are served in order, repeating the last entry. Err, when set,
// fails every call.
type StubValidator struct {
	mu sync.Mutex

	Results []llm.ValidationResult
	Err     error

	next int
}

// Validate returns the next scripted validation result.
func (v *StubValidator) Validate(ctx context.Context, data any, instruction string) (llm.ValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Err != nil {
		return llm.ValidationResult{}, v.Err
	}
	if len(v.Results) == 0 {
		return llm.ValidationResult{Valid: false}, nil
	}
	res := v.Results[min(v.next, len(v.Results)-1)]
	v.next++
	return res, nil
}

var (
	_ llm.Client    = (*StubClient)(nil)
	_ llm.Validator = (*StubValidator)(nil)
)
