package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"symcheck/internal/observability"
	"symcheck/internal/token"
)

type instrumentedClient struct {
	underlying Client
	metrics    *observability.MetricsCollector
	tracer     *observability.TracerProvider
}

// NewInstrumentedClient records latency, prompt size and outcome for every
// call. Nil metrics or tracer are allowed.
func NewInstrumentedClient(client Client, metrics *observability.MetricsCollector, tracer *observability.TracerProvider) Client {
	return &instrumentedClient{underlying: client, metrics: metrics, tracer: tracer}
}

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (string, error) {
	model := c.underlying.Model()
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanLLMComplete,
		attribute.String(observability.AttrModel, model),
		attribute.Int("symcheck.llm.max_tokens", req.MaxTokens),
	)

	start := time.Now()
	out, err := c.underlying.Complete(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordLLMRequest(ctx, model, status, time.Since(start), token.Count(req.System)+token.Count(req.User))
	observability.EndSpan(span, err)
	return out, err
}

func (c *instrumentedClient) Model() string {
	return c.underlying.Model()
}
