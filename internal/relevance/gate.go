// Package relevance keeps the assistant on medical topics.
package relevance

import (
	"context"
	"strings"

	"symcheck/internal/llm"
	"symcheck/internal/logging"
	"symcheck/internal/observability"
	"symcheck/internal/prompts"
)

// Params are the generation settings for the classifier call.
type Params struct {
	Temperature float32
	MaxTokens   int
}

// DefaultParams classify deterministically with a one-word answer.
func DefaultParams() Params {
	return Params{Temperature: 0.0, MaxTokens: 10}
}

// Gate asks the model whether a message is health-related.
type Gate struct {
	client  llm.Client
	prompts *prompts.Builder
	params  Params
	metrics *observability.MetricsCollector
	logger  logging.Logger
}

// NewGate builds a gate. metrics may be nil.
func NewGate(client llm.Client, builder *prompts.Builder, params Params, metrics *observability.MetricsCollector, logger logging.Logger) *Gate {
	return &Gate{
		client:  client,
		prompts: builder,
		params:  params,
		metrics: metrics,
		logger:  logging.OrNop(logger),
	}
}

// IsMedical returns true when the reply contains "YES". Any failure to get a
// reply counts as medical so real patients are never turned away by an
// outage.
func (g *Gate) IsMedical(ctx context.Context, text string) bool {
	prompt, err := g.prompts.Relevance(ctx, text)
	if err != nil {
		return g.failOpen(ctx, err)
	}

	reply, err := g.client.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: g.params.Temperature,
		MaxTokens:   g.params.MaxTokens,
	})
	if err != nil {
		return g.failOpen(ctx, err)
	}

	medical := strings.Contains(strings.ToUpper(strings.TrimSpace(reply)), "YES")
	g.metrics.RecordGateDecision(ctx, medical, false)
	g.logger.Debug("Relevance gate classified message as medical=%t", medical)
	return medical
}

func (g *Gate) failOpen(ctx context.Context, err error) bool {
	g.logger.Warn("Relevance check failed, treating message as medical: %v", err)
	g.metrics.RecordGateDecision(ctx, true, true)
	return true
}
