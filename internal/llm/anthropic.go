package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	defaultModel      = "claude-3-5-sonnet-20241022"
	defaultMaxTokens  = 1024
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
	defaultBaseBackoff = 1 * time.Second
	// defaultRateLimit allows 50 requests/minute by default, matching the
	// conservative per-process cap used elsewhere against hosted model APIs.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Config holds configuration for the Anthropic-backed LLM client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RatePerSec  float64
	Burst       int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	return nil
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	sdk         anthropic.Client
	model       string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	maxRetries  int
}

// NewAnthropicClient creates a new Anthropic-backed LLM client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec == 0 {
		ratePerSec = defaultRateLimit
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = defaultBurst
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	return &AnthropicClient{
		sdk:         anthropic.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), burst),
		maxRetries:  defaultMaxRetries,
	}, nil
}

// Complete sends req to the Anthropic Messages API, retrying transient
// failures with exponential backoff, and returns the generated text plus
// token usage.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Completion, error) {
	if len(req.Messages) == 0 {
		return Completion{}, ErrEmptyPrompt
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Completion{}, fmt.Errorf("rate limiter: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(firstNonZero(req.MaxTokens, c.maxTokens)),
		Temperature: anthropic.Float(firstNonZeroFloat(req.Temperature, c.temperature)),
		Messages:    adaptMessages(req.Messages),
	}
	if sys := strings.TrimSpace(req.System); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			}
		}

		resp, err := c.sdk.Messages.New(ctx, params)
		if err == nil {
			return completionFromResponse(resp), nil
		}

		lastErr = err
		if !isRetryableAPIError(err) {
			return Completion{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
	}

	return Completion{}, fmt.Errorf("%w: max retries exceeded: %v", ErrCompletionFailed, lastErr)
}

// Close releases client resources. The Anthropic SDK client owns no
// long-lived connections that require explicit shutdown.
func (c *AnthropicClient) Close() error {
	return nil
}

func adaptMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func completionFromResponse(resp *anthropic.Message) Completion {
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	input := int(resp.Usage.InputTokens)
	output := int(resp.Usage.OutputTokens)
	return Completion{
		Text: sb.String(),
		Usage: Usage{
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		},
	}
}

// isRetryableAPIError reports whether err represents a transient failure
// (rate limiting or a server-side error) worth retrying.
func isRetryableAPIError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroFloat(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

var _ Client = (*AnthropicClient)(nil)
