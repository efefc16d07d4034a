package domain

import (
	"context"
	"time"
)

// ChatMessage is one turn of a chat prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single non-streaming completion request.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// ChatResponse carries the two output channels a reasoning model may fill:
// the answer and its separate thinking trace.
type ChatResponse struct {
	Content      string
	Thinking     string
	EvalCount    int
	EvalDuration time.Duration
}

// InferenceBackend runs chat completions.
type InferenceBackend interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
