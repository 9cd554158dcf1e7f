package observability

import (
	"context"
	"errors"
	"io"
)

// Config represents the complete observability configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, text
}

// DefaultConfig returns the default observability configuration
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			PrometheusPort: 9090,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    "symcheck",
			ServiceVersion: "dev",
		},
	}
}

// Observability bundles the logger, metrics and tracer built from one Config.
type Observability struct {
	Logger  *Logger
	Metrics *MetricsCollector
	Tracer  *TracerProvider
}

// New builds every observability component. Logs go to output.
func New(ctx context.Context, config Config, output io.Writer) (*Observability, error) {
	logger := NewLogger(LogConfig{
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
		Output: output,
	})

	metrics, err := NewMetricsCollector(config.Metrics)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracerProvider(ctx, config.Tracing)
	if err != nil {
		_ = metrics.Shutdown(ctx)
		return nil, err
	}

	return &Observability{Logger: logger, Metrics: metrics, Tracer: tracer}, nil
}

// Shutdown flushes metrics and traces.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Metrics.Shutdown(ctx), o.Tracer.Shutdown(ctx))
}
