package main

import (
	"context"
	"fmt"
	"io"

	"symcheck/internal/config"
	"symcheck/internal/conversation"
	"symcheck/internal/diagnosis"
	"symcheck/internal/emergency"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/followup"
	"symcheck/internal/llm"
	"symcheck/internal/logging"
	"symcheck/internal/observability"
	"symcheck/internal/prompts"
	"symcheck/internal/rag"
	"symcheck/internal/rag/gate"
	"symcheck/internal/relevance"
	"symcheck/internal/report"
)

// Container holds every long-lived component of a running assistant.
type Container struct {
	Config    config.Config
	Obs       *observability.Observability
	Logger    logging.Logger
	Index     *rag.Index
	Evaluator *gate.Evaluator
	Engine    *conversation.Engine
	Sessions  *conversation.SessionStore
	Reports   *report.Renderer
}

// newObservability installs the process logger and returns the bundle.
func newObservability(ctx context.Context, cfg config.Config, logOutput io.Writer) (*observability.Observability, error) {
	obs, err := observability.New(ctx, cfg.Observability, logOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise observability: %w", err)
	}
	logging.SetDefault(obs.Logger)
	return obs, nil
}

func newEmbedder(cfg config.Config) (rag.Embedder, error) {
	return rag.NewEmbedder(rag.EmbedderConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
		Retry:      cfg.RetryPolicy(),
		Timeout:    cfg.LLM.Timeout,
	}, logging.NewComponentLogger("embedder"))
}

// buildContainer validates cfg, loads the index and wires the state machine.
// Any failure here is fatal for the process.
func buildContainer(ctx context.Context, cfg config.Config, logOutput io.Writer) (*Container, error) {
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}

	obs, err := newObservability(ctx, cfg, logOutput)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger("symcheck")
	logger.Info("Starting with model %s, key %s", cfg.LLM.Model, observability.SanitizeAPIKey(cfg.LLM.APIKey))

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	index, err := rag.LoadIndex(cfg.Index.Dir, embedder)
	if err != nil {
		return nil, err
	}
	manifest := index.Manifest()
	logger.Info("Loaded index from %s: %d chunks (%d MedlinePlus, %d textbook)",
		cfg.Index.Dir, manifest.TotalChunks, manifest.PrimaryReferenceChunks, manifest.ClinicalReferenceChunks)

	base, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logging.NewComponentLogger("llm"))
	if err != nil {
		return nil, err
	}
	breaker := apperrors.NewCircuitBreaker("openai", cfg.BreakerPolicy(), logging.NewComponentLogger("breaker"))
	client := llm.NewInstrumentedClient(
		llm.NewRetryClient(base, cfg.RetryPolicy(), breaker, logging.NewComponentLogger("retry")),
		obs.Metrics, obs.Tracer,
	)

	builder, err := prompts.NewBuilder()
	if err != nil {
		return nil, err
	}

	evaluator := gate.NewEvaluator(cfg.Diagnosis.EvaluatorWindow)
	synth, err := diagnosis.NewSynthesizer(
		rag.NewRetriever(index, obs.Tracer, logging.NewComponentLogger("retriever")),
		client, builder,
		diagnosis.Params{
			Threshold:   cfg.Diagnosis.RelevanceThreshold,
			TopK:        cfg.Diagnosis.TopK,
			Temperature: cfg.Diagnosis.Temperature,
			MaxTokens:   cfg.Diagnosis.MaxTokens,
		},
		logging.NewComponentLogger("diagnosis"),
		diagnosis.WithEvaluator(evaluator),
		diagnosis.WithObservability(obs.Metrics, obs.Tracer),
	)
	if err != nil {
		return nil, apperrors.NewConfigurationError("diagnosis", err)
	}

	engine, err := conversation.NewEngine(conversation.Dependencies{
		Detector: emergency.NewDetector(emergency.DefaultTable()),
		Gate: relevance.NewGate(client, builder, relevance.Params{
			Temperature: cfg.Relevance.Temperature,
			MaxTokens:   cfg.Relevance.MaxTokens,
		}, obs.Metrics, logging.NewComponentLogger("relevance")),
		Questions: followup.NewGenerator(client, builder, followup.Params{
			Temperature: cfg.Followup.Temperature,
			MaxTokens:   cfg.Followup.MaxTokens,
			Total:       cfg.Conversation.NumFollowups,
		}, logging.NewComponentLogger("followup")),
		Synthesizer: synth,
	}, cfg.Conversation.NumFollowups,
		conversation.WithObservability(obs.Metrics, obs.Tracer),
		conversation.WithLogger(logging.NewComponentLogger("conversation")),
	)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:    cfg,
		Obs:       obs,
		Logger:    logger,
		Index:     index,
		Evaluator: evaluator,
		Engine:    engine,
		Sessions:  conversation.NewSessionStore(cfg.Session.TTL, obs.Metrics, logging.NewComponentLogger("sessions")),
		Reports:   report.NewRenderer(logging.NewComponentLogger("report"), cfg.Report.FontPath),
	}, nil
}

// Cleanup flushes telemetry.
func (c *Container) Cleanup(ctx context.Context) error {
	return c.Obs.Shutdown(ctx)
}
