// Package followup asks one multiple-choice clarifying question per turn.
package followup

import (
	"context"
	"fmt"

	"symcheck/internal/llm"
	"symcheck/internal/logging"
	"symcheck/internal/prompts"
	"symcheck/internal/types"
)

// Params are the generation settings for follow-up questions.
type Params struct {
	Temperature float32
	MaxTokens   int
	Total       int // Questions asked before diagnosis
}

// DefaultParams returns the settings used by the screening flow.
func DefaultParams() Params {
	return Params{Temperature: 0.7, MaxTokens: 200, Total: 3}
}

// Generator produces follow-up questions from the conversation so far.
type Generator struct {
	client  llm.Client
	prompts *prompts.Builder
	params  Params
	logger  logging.Logger
}

// NewGenerator creates a question generator.
func NewGenerator(client llm.Client, builder *prompts.Builder, params Params, logger logging.Logger) *Generator {
	return &Generator{
		client:  client,
		prompts: builder,
		params:  params,
		logger:  logging.OrNop(logger),
	}
}

// Generate returns the raw text of question number n. The prompt carries
// every user message and, when the history ends with one, the last
// question/answer pair.
func (g *Generator) Generate(ctx context.Context, history types.History, n int) (string, error) {
	input := prompts.FollowupInput{
		Symptoms:       history.UserTexts(),
		QuestionNumber: n,
		Total:          g.params.Total,
	}
	if q, a, ok := history.LastExchange(); ok {
		input.LastQuestion, input.LastAnswer = q, a
	}

	prompt, err := g.prompts.Followup(ctx, input)
	if err != nil {
		return "", err
	}

	g.logger.Debug("Generating follow-up question #%d", n)
	question, err := g.client.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: g.params.Temperature,
		MaxTokens:   g.params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate follow-up question #%d: %w", n, err)
	}
	return question, nil
}
