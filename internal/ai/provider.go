package ai

import (
	"context"
	"encoding/json"
)

// Message is one role-tagged turn in the shape the completion APIs accept.
// Optional fields are omitted when absent; Content always serializes, even
// when empty.
type Message struct {
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Name         string          `json:"name,omitempty"`
	FunctionCall json.RawMessage `json:"function_call,omitempty"`
}

// ChatRequest carries one completion call: an ordered prompt plus the
// generation parameters for it.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider sends a composed prompt to a completion API and returns the
// single assistant message, or an error.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (Message, error)
}
