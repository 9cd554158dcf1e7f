package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records symptom-checker metrics. A zero value (metrics
// disabled) is safe to use; every Record method becomes a no-op.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider

	turns            metric.Int64Counter
	stageTransitions metric.Int64Counter
	gateDecisions    metric.Int64Counter
	diagnoses        metric.Int64Counter
	retrievalScore   metric.Float64Histogram
	llmRequests      metric.Int64Counter
	llmLatency       metric.Float64Histogram
	llmPromptTokens  metric.Int64Counter
	sessionsActive   metric.Int64UpDownCounter

	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port" mapstructure:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("symcheck")

	collector := &MetricsCollector{provider: provider}
	if err := collector.register(meter); err != nil {
		return nil, err
	}

	if config.PrometheusPort > 0 {
		collector.StartPrometheusServer(config.PrometheusPort)
	}
	return collector, nil
}

func (m *MetricsCollector) register(meter metric.Meter) error {
	var err error
	if m.turns, err = meter.Int64Counter("symcheck.turns.total",
		metric.WithDescription("Processed conversation turns by response type"),
		metric.WithUnit("{turn}")); err != nil {
		return fmt.Errorf("failed to create turns counter: %w", err)
	}
	if m.stageTransitions, err = meter.Int64Counter("symcheck.stage.transitions.total",
		metric.WithDescription("Conversation stage transitions"),
		metric.WithUnit("{transition}")); err != nil {
		return fmt.Errorf("failed to create stage transitions counter: %w", err)
	}
	if m.gateDecisions, err = meter.Int64Counter("symcheck.relevance_gate.decisions.total",
		metric.WithDescription("Medical-relevance gate outcomes"),
		metric.WithUnit("{decision}")); err != nil {
		return fmt.Errorf("failed to create gate counter: %w", err)
	}
	if m.diagnoses, err = meter.Int64Counter("symcheck.diagnoses.total",
		metric.WithDescription("Diagnoses by grounding path"),
		metric.WithUnit("{diagnosis}")); err != nil {
		return fmt.Errorf("failed to create diagnoses counter: %w", err)
	}
	if m.retrievalScore, err = meter.Float64Histogram("symcheck.retrieval.best_score",
		metric.WithDescription("Best retrieval distance per diagnosis (lower is better)")); err != nil {
		return fmt.Errorf("failed to create retrieval histogram: %w", err)
	}
	if m.llmRequests, err = meter.Int64Counter("symcheck.llm.requests.total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("{request}")); err != nil {
		return fmt.Errorf("failed to create llm_requests counter: %w", err)
	}
	if m.llmLatency, err = meter.Float64Histogram("symcheck.llm.latency",
		metric.WithDescription("LLM request latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create llm_latency histogram: %w", err)
	}
	if m.llmPromptTokens, err = meter.Int64Counter("symcheck.llm.tokens.prompt",
		metric.WithDescription("Prompt tokens sent to the LLM"),
		metric.WithUnit("{token}")); err != nil {
		return fmt.Errorf("failed to create llm_tokens counter: %w", err)
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("symcheck.sessions.active",
		metric.WithDescription("Number of live sessions"),
		metric.WithUnit("{session}")); err != nil {
		return fmt.Errorf("failed to create sessions_active gauge: %w", err)
	}
	return nil
}

// StartPrometheusServer serves /metrics on port in the background.
func (m *MetricsCollector) StartPrometheusServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := NewLogger(LogConfig{}).With("component", "metrics")
	go func() {
		logger.Info("Prometheus metrics server listening", "port", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Prometheus server error", "error", err)
		}
	}()
}

// Shutdown stops the scrape server and flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.prometheusServer != nil {
		errs = append(errs, m.prometheusServer.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordTurn counts a processed message by response type.
func (m *MetricsCollector) RecordTurn(ctx context.Context, responseType string) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("type", responseType)))
}

// RecordStageTransition counts a from→to stage change.
func (m *MetricsCollector) RecordStageTransition(ctx context.Context, from, to string) {
	if m == nil || m.stageTransitions == nil {
		return
	}
	m.stageTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordGateDecision counts relevance-gate outcomes; failedOpen marks
// decisions forced by a collaborator error.
func (m *MetricsCollector) RecordGateDecision(ctx context.Context, medical, failedOpen bool) {
	if m == nil || m.gateDecisions == nil {
		return
	}
	m.gateDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("medical", medical),
		attribute.Bool("failed_open", failedOpen),
	))
}

// RecordDiagnosis counts a synthesized diagnosis and, when retrieval
// returned anything, the best distance observed.
func (m *MetricsCollector) RecordDiagnosis(ctx context.Context, grounded bool, bestScore *float64) {
	if m == nil || m.diagnoses == nil {
		return
	}
	m.diagnoses.Add(ctx, 1, metric.WithAttributes(attribute.Bool("grounded", grounded)))
	if bestScore != nil {
		m.retrievalScore.Record(ctx, *bestScore)
	}
}

// RecordLLMRequest records an LLM request
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, model, status string, latency time.Duration, promptTokens int) {
	if m == nil || m.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
	if promptTokens > 0 {
		m.llmPromptTokens.Add(ctx, int64(promptTokens), metric.WithAttributes(attribute.String("model", model)))
	}
}

// IncrementActiveSessions increments the active sessions counter
func (m *MetricsCollector) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter
func (m *MetricsCollector) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}
