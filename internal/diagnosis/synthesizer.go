// Package diagnosis writes the final screening report, grounded in retrieved
// reference passages when they are close enough to the patient's story.
package diagnosis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"symcheck/internal/llm"
	"symcheck/internal/logging"
	"symcheck/internal/observability"
	"symcheck/internal/prompts"
	"symcheck/internal/rag"
	"symcheck/internal/rag/gate"
	"symcheck/internal/types"
)

// Retriever is the passage source the synthesizer grounds against.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]rag.Passage, error)
}

// Params configure retrieval and generation for a diagnosis.
type Params struct {
	Threshold   float64
	TopK        int
	Temperature float32
	MaxTokens   int
}

// DefaultParams returns the production settings.
func DefaultParams() Params {
	return Params{
		Threshold:   gate.DefaultThreshold,
		TopK:        rag.DefaultTopK,
		Temperature: 0.7,
		MaxTokens:   1500,
	}
}

// Source is a citation shown alongside a grounded report.
type Source struct {
	Title          string         `json:"title"`
	URL            string         `json:"url"`
	SourceType     rag.SourceType `json:"source_type"`
	RelevanceScore float64        `json:"relevance_score"`
}

// Result is a finished diagnosis.
type Result struct {
	Report          string   `json:"report"`
	Sources         []Source `json:"sources"`
	UsedRetrieval   bool     `json:"used_retrieval"`
	FallbackReason  string   `json:"fallback_reason"`
	BestScore       *float64 `json:"best_score"`
	MissingSections []string `json:"missing_sections,omitempty"`

	// OutOfOrderSections are present but not in the required order.
	OutOfOrderSections []string `json:"out_of_order_sections,omitempty"`
}

// Synthesizer turns a finished conversation into a Result.
type Synthesizer struct {
	retriever Retriever
	client    llm.Client
	prompts   *prompts.Builder
	policy    gate.Policy
	params    Params
	evaluator *gate.Evaluator
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	logger    logging.Logger
}

// Option customises a Synthesizer.
type Option func(*Synthesizer)

// WithEvaluator records every outcome into evaluator.
func WithEvaluator(evaluator *gate.Evaluator) Option {
	return func(s *Synthesizer) { s.evaluator = evaluator }
}

// WithObservability attaches metrics and tracing.
func WithObservability(metrics *observability.MetricsCollector, tracer *observability.TracerProvider) Option {
	return func(s *Synthesizer) {
		s.metrics = metrics
		s.tracer = tracer
	}
}

// NewSynthesizer validates params and builds a synthesizer.
func NewSynthesizer(retriever Retriever, client llm.Client, builder *prompts.Builder, params Params, logger logging.Logger, opts ...Option) (*Synthesizer, error) {
	policy, err := gate.NewPolicy(params.Threshold)
	if err != nil {
		return nil, err
	}
	if params.TopK <= 0 {
		params.TopK = rag.DefaultTopK
	}
	s := &Synthesizer{
		retriever: retriever,
		client:    client,
		prompts:   builder,
		policy:    policy,
		params:    params,
		logger:    logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Synthesize retrieves against the combined user narrative, decides whether
// the passages are trustworthy and generates the matching report. Retrieval
// and generation failures are returned unchanged in meaning; no partial
// result is produced.
func (s *Synthesizer) Synthesize(ctx context.Context, history types.History) (result *Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSynthesize)
	defer func() { observability.EndSpan(span, err) }()

	narrative := history.Narrative()
	passages, err := s.retriever.Retrieve(ctx, narrative, s.params.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve reference passages: %w", err)
	}

	scores := make([]float64, len(passages))
	for i, p := range passages {
		scores[i] = p.Score
	}
	decision := s.policy.Decide(scores)
	if decision.BestScore != nil {
		span.SetAttributes(attribute.Float64(observability.AttrBestScore, *decision.BestScore))
	}
	span.SetAttributes(attribute.Bool(observability.AttrGrounded, decision.Grounded()))

	var prompt prompts.Prompt
	if decision.Grounded() {
		prompt, err = s.prompts.GroundedDiagnosis(ctx, history.Transcript(), rag.FormatContext(passages))
	} else {
		if decision.BestScore != nil {
			s.logger.Info("Best retrieval score %.3f above threshold %.3f, using general knowledge", *decision.BestScore, s.policy.Threshold())
		} else {
			s.logger.Info("No reference passages retrieved, using general knowledge")
		}
		prompt, err = s.prompts.FallbackDiagnosis(ctx, narrative)
	}
	if err != nil {
		return nil, err
	}

	report, err := s.client.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: s.params.Temperature,
		MaxTokens:   s.params.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate diagnosis: %w", err)
	}

	required := fallbackSections
	if decision.Grounded() {
		required = groundedSections
	}
	missing := MissingSections(report, required)
	disordered := OutOfOrderSections(report, required)
	if len(missing) > 0 {
		s.logger.Warn("Diagnosis report is missing required sections: %s", strings.Join(missing, ", "))
	}
	if len(disordered) > 0 {
		s.logger.Warn("Diagnosis report has sections out of order: %s", strings.Join(disordered, ", "))
	}
	if len(missing) > 0 || len(disordered) > 0 {
		report += incompleteCaveat(missing, disordered)
	}
	if !decision.Grounded() && !strings.Contains(report, prompts.FallbackNote) {
		report += "\n\n## Important Note\n" + prompts.FallbackNote
	}
	if !strings.Contains(report, prompts.Disclaimer) {
		report += "\n\n*" + prompts.Disclaimer + "*"
	}

	result = &Result{
		Report:             report,
		Sources:            []Source{},
		UsedRetrieval:      decision.Grounded(),
		FallbackReason:     decision.Reason,
		BestScore:          decision.BestScore,
		MissingSections:    missing,
		OutOfOrderSections: disordered,
	}
	if decision.Grounded() {
		for _, p := range passages {
			result.Sources = append(result.Sources, Source{
				Title:          p.Title,
				URL:            p.URL,
				SourceType:     p.SourceType,
				RelevanceScore: p.Score,
			})
		}
	}

	s.metrics.RecordDiagnosis(ctx, result.UsedRetrieval, result.BestScore)
	s.evaluator.RecordOutcome(gate.Outcome{
		Mode:            decision.Mode,
		BestScore:       decision.BestScore,
		RetrievedChunks: len(passages),
		MissingSections: len(missing),
		Latency:         time.Since(start),
	})
	return result, nil
}
