package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var anthropicTracer = otel.Tracer("porthealth.llm.anthropic")

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20240620"
	validatorMaxTokens      = 1024
)

// AnthropicConfig holds configuration for the Anthropic-backed validator.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// AnthropicValidator implements Validator using Anthropic's messages API.
// It is deliberately a different backing service from the generation client
// so that validation stays independent of the model being validated.
type AnthropicValidator struct {
	model      string
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// NewAnthropicValidator creates a new Anthropic validator.
func NewAnthropicValidator(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicValidator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnthropicValidator{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// anthropicRequest represents the request format for the messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a message in the conversation.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse represents the response from the messages API.
type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// anthropicError represents an error response from the API.
type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// validatorResponse is the JSON shape the validator is asked to return.
type validatorResponse struct {
	Score       *float64 `json:"score"`
	Concerns    []string `json:"concerns"`
	Suggestions []string `json:"suggestions"`
}

// Validate submits structured data plus an instruction and returns the
// validator's confidence. Malformed model output yields a failure sentinel
// (Valid=false), never an error: callers treat it as score-absent.
func (a *AnthropicValidator) Validate(ctx context.Context, data any, instruction string) (ValidationResult, error) {
	ctx, span := anthropicTracer.Start(ctx, "llm.validate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", a.model))

	if err := a.limiter.Wait(ctx); err != nil {
		return ValidationResult{}, fmt.Errorf("rate limiter error: %w", err)
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to marshal validation data: %w", err)
	}

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   validatorMaxTokens,
		Temperature: 0.1,
		System:      instruction,
		Messages: []anthropicMessage{
			{Role: "user", Content: string(payload)},
		},
	}

	start := time.Now()
	text, err := a.withRetries(ctx, func(ctx context.Context) (string, error) {
		return a.doRequest(ctx, req)
	})
	RequestDuration.WithLabelValues("anthropic", "validate").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues("anthropic", "validate", "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return ValidationResult{}, err
	}
	RequestsTotal.WithLabelValues("anthropic", "validate", "success").Inc()

	return parseValidation(text), nil
}

// parseValidation turns raw model output into a ValidationResult.
func parseValidation(text string) ValidationResult {
	var resp validatorResponse
	if err := json.Unmarshal([]byte(StripFences(text)), &resp); err != nil || resp.Score == nil {
		return ValidationResult{Valid: false}
	}

	score := *resp.Score
	if score < 0 || score > 1 {
		return ValidationResult{Valid: false}
	}

	return ValidationResult{
		Valid:       true,
		Score:       score,
		Concerns:    resp.Concerns,
		Suggestions: resp.Suggestions,
	}
}

// withRetries runs fn with bounded exponential backoff on retryable errors.
func (a *AnthropicValidator) withRetries(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			RetriesTotal.WithLabelValues("anthropic", "validate").Inc()
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs the HTTP request to the messages API.
func (a *AnthropicValidator) doRequest(ctx context.Context, req anthropicRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp anthropicError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return msgResp.Content[0].Text, nil
}

// Ensure interfaces are implemented.
var _ Validator = (*AnthropicValidator)(nil)
