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

// Default configuration values.
const (
	defaultOpenAIBaseURL  = "https://api.openai.com"
	defaultOpenAIModel    = "gpt-4.1-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxTokens      = 4000
	defaultTimeout        = 60 * time.Second
	defaultMaxRetries     = 3
	defaultBaseBackoff    = 1 * time.Second

	// Embedding input is truncated to stay under the model's token limit.
	maxEmbeddingInputChars = 8000
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

var openAITracer = otel.Tracer("porthealth.llm.openai")

// OpenAIConfig holds configuration for the OpenAI-backed client.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
}

// OpenAIClient implements Client using OpenAI's chat-completions and
// embeddings APIs over plain HTTP.
type OpenAIClient struct {
	model          string
	embeddingModel string
	apiKey         string `json:"-"` // Never serialize API keys
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	logger         *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
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

	return &OpenAIClient{
		model:          model,
		embeddingModel: embeddingModel,
		apiKey:         cfg.APIKey,
		baseURL:        baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// openAIRequest represents the request format for the chat API.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// openAIMessage represents a message in the chat conversation.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse represents the response from the chat API.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// openAIEmbeddingRequest represents the request format for the embeddings API.
type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// openAIEmbeddingResponse represents the response from the embeddings API.
type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// openAIError represents an error response from the API.
type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate produces free text for a prompt.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, span := openAITracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	messages := make([]openAIMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	req := openAIRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: temperature,
	}

	start := time.Now()
	text, err := o.withRetries(ctx, "generate", func(ctx context.Context) (string, error) {
		return o.doChatRequest(ctx, req)
	})
	RequestDuration.WithLabelValues("openai", "generate").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues("openai", "generate", "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	RequestsTotal.WithLabelValues("openai", "generate", "success").Inc()
	return text, nil
}

// GenerateEmbedding produces an embedding vector for a text.
func (o *OpenAIClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if len(text) == 0 {
		return nil, nil
	}
	if len(text) > maxEmbeddingInputChars {
		text = text[:maxEmbeddingInputChars]
	}

	ctx, span := openAITracer.Start(ctx, "llm.embed")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.embeddingModel))

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req := openAIEmbeddingRequest{Model: o.embeddingModel, Input: text}

	start := time.Now()
	var vec []float32
	_, err := o.withRetries(ctx, "embed", func(ctx context.Context) (string, error) {
		v, err := o.doEmbeddingRequest(ctx, req)
		if err != nil {
			return "", err
		}
		vec = v
		return "", nil
	})
	RequestDuration.WithLabelValues("openai", "embed").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues("openai", "embed", "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	RequestsTotal.WithLabelValues("openai", "embed", "success").Inc()
	return vec, nil
}

// BatchGenerate runs Generate per prompt. Individual failures yield empty
// slots; the batch never fails as a whole.
func (o *OpenAIClient) BatchGenerate(ctx context.Context, prompts []string, opts GenerateOptions) ([]string, error) {
	results := make([]string, len(prompts))
	for i, p := range prompts {
		text, err := o.Generate(ctx, p, opts)
		if err != nil {
			o.logger.Warn("batch generate prompt failed",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		results[i] = text
	}
	return results, nil
}

// withRetries runs fn with bounded exponential backoff on retryable errors.
func (o *OpenAIClient) withRetries(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			RetriesTotal.WithLabelValues("openai", operation).Inc()
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

// doChatRequest performs the HTTP request to the chat-completions API.
func (o *OpenAIClient) doChatRequest(ctx context.Context, req openAIRequest) (string, error) {
	body, err := o.doPost(ctx, "/v1/chat/completions", req)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return resp.Choices[0].Message.Content, nil
}

// doEmbeddingRequest performs the HTTP request to the embeddings API.
func (o *OpenAIClient) doEmbeddingRequest(ctx context.Context, req openAIEmbeddingRequest) ([]float32, error) {
	body, err := o.doPost(ctx, "/v1/embeddings", req)
	if err != nil {
		return nil, err
	}

	var resp openAIEmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response from API")
	}
	return resp.Data[0].Embedding, nil
}

// doPost sends a JSON POST and returns the response body for 200 responses.
func (o *OpenAIClient) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp openAIError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	for e := err; e != nil; {
		if _, ok := e.(*retryableError); ok {
			return true
		}
		if unwrapper, ok := e.(interface{ Unwrap() error }); ok {
			e = unwrapper.Unwrap()
		} else {
			break
		}
	}
	return false
}

// Ensure interfaces are implemented.
var _ Client = (*OpenAIClient)(nil)
