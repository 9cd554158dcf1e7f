package llm

import "context"

// Request is a single-turn completion: one system prompt, one user prompt.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client generates text from a prompt pair. Implementations may fail with
// transient network or quota errors.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}
