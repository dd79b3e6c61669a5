// Package llm implements the LLM Client: a chat-completion call against
// an upstream language model, reporting token usage alongside the
// generated text.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyPrompt indicates a completion was requested with no content.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// ErrInvalidConfig indicates invalid client configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrCompletionFailed indicates the upstream model server returned an
// error or an unusable response.
var ErrCompletionFailed = errors.New("completion failed")

// Message is a single turn in a chat-style completion request.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Usage reports token consumption for a completion call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Completion is the result of a chat-completion call.
type Completion struct {
	Text  string
	Usage Usage
}

// Request bundles the parameters of a single completion call.
type Request struct {
	Messages    []Message
	System      string
	Temperature float64
	MaxTokens   int
}

// Client produces a completion for a prompt and reports token usage.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Close() error
}
