package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoggerWithContextAddsSessionID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: buf})

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	logger.WithContext(ctx).Info("turn processed", "stage", "followup")

	out := buf.String()
	require.Contains(t, out, `"session_id":"sess-1"`)
	require.Contains(t, out, `"stage":"followup"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "warn", Output: buf})
	logger.Info("hidden")
	logger.Warn("shown")

	require.False(t, strings.Contains(buf.String(), "hidden"))
	require.Contains(t, buf.String(), "shown")
}

func TestSanitizeAPIKey(t *testing.T) {
	require.Equal(t, "***", SanitizeAPIKey("short"))
	require.Equal(t, "sk-abcde...wxyz", SanitizeAPIKey("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestDisabledCollectorsAreNoops(t *testing.T) {
	ctx := context.Background()
	obs, err := New(ctx, DefaultConfig(), &bytes.Buffer{})
	require.NoError(t, err)

	score := 0.4
	obs.Metrics.RecordTurn(ctx, "diagnosis")
	obs.Metrics.RecordStageTransition(ctx, "initial", "followup")
	obs.Metrics.RecordGateDecision(ctx, true, false)
	obs.Metrics.RecordDiagnosis(ctx, true, &score)
	obs.Metrics.RecordLLMRequest(ctx, "gpt", "success", time.Second, 12)
	obs.Metrics.IncrementActiveSessions(ctx)

	spanCtx, span := obs.Tracer.StartSpan(ContextWithSessionID(ctx, "s"), SpanProcessMessage)
	require.NotNil(t, spanCtx)
	EndSpan(span, nil)

	require.NoError(t, obs.Shutdown(ctx))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var metrics *MetricsCollector
	metrics.RecordTurn(context.Background(), "complete")
	require.NoError(t, metrics.Shutdown(context.Background()))

	var tracer *TracerProvider
	_, span := tracer.StartSpan(context.Background(), SpanRetrieve)
	EndSpan(span, nil)
}
