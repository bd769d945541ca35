// Package llm provides the chat-completion provider abstraction used by the
// analysis agents. Providers classify transient failures but never retry;
// retry policy belongs to the agent loop.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant turns
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool-result turns
}

// ToolCall is a structured function invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Tool declares a callable function with a JSON-schema parameter object
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Request is a single chat completion request
type Request struct {
	Model       string
	System      string // system instructions, may be empty
	Messages    []Message
	Tools       []Tool
	Temperature float32
	MaxTokens   int
}

// Response is the model's reply: plain content, tool calls, or both
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider is a chat-completion backend with tool calling
type Provider interface {
	Name() string
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// TransientError marks a failure worth retrying (timeout, connection,
// rate limit). Providers wrap such errors; callers test with IsTransient.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a retryable provider failure
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// looksTransient is a string-level fallback for errors that carry no
// structured status code
func looksTransient(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "reset") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503")
}

// Config holds provider construction settings
type Config struct {
	Provider    string // "openai" or "google"
	APIKey      string
	BaseURL     string
	Model       string
	TimeoutSecs int
}

// New builds a provider by name
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(cfg), nil
	case "google":
		return NewGoogle(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
