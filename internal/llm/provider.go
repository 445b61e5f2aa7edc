// Package llm drafts short configuration text with a hosted language model.
// Calls are single-turn: one system instruction and one user message.
package llm

import (
	"context"
	"time"
)

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Gateway routes requests to a provider with retry and fallback.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

type Request struct {
	Provider    string
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks for a single JSON object as the whole answer.
	JSON bool
}

type Completion struct {
	Provider     string
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}
