// Package config loads runtime settings from defaults, an optional YAML file,
// .env files and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "symcheck/internal/errors"
	"symcheck/internal/observability"
)

const (
	configName = "symcheck"
	envPrefix  = "SYMCHECK"
)

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	configFile  string
	envFiles    []string
	searchPaths []string
	overrides   map[string]any
}

// WithConfigFile reads exactly path instead of searching for symcheck.yaml.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFiles replaces the default ".env". Missing files are skipped.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) { o.envFiles = paths }
}

// WithSearchPaths replaces the directories searched for symcheck.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) { o.searchPaths = paths }
}

// WithOverrides applies dotted-key values on top of every other source, for
// example command-line flags.
func WithOverrides(values map[string]any) Option {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.overrides[k] = v
		}
	}
}

// Load resolves the configuration. It does not validate it; call
// Config.Validate once the caller knows which settings it needs.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envFiles:    []string{".env"},
		searchPaths: []string{"$HOME/.symcheck", "."},
	}
	for _, opt := range opts {
		opt(&options)
	}
	meta := Metadata{LoadedAt: time.Now()}

	for _, path := range options.envFiles {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, meta, apperrors.NewConfigurationError("env_file", fmt.Errorf("load %s: %w", path, err))
		}
		meta.EnvFiles = append(meta.EnvFiles, path)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", envPrefix+"_LLM_BASE_URL", "OPENAI_BASE_URL")

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, meta, apperrors.NewConfigurationError("config_file", fmt.Errorf("read %s: %w", options.configFile, err))
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, path := range options.searchPaths {
			v.AddConfigPath(path)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, meta, apperrors.NewConfigurationError("config_file", err)
			}
		}
	}
	meta.ConfigFile = v.ConfigFileUsed()

	for key, value := range options.overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, meta, apperrors.NewConfigurationError("", fmt.Errorf("decode configuration: %w", err))
	}
	return cfg, meta, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.timeout", DefaultRequestTimeout)

	v.SetDefault("embedding.model", DefaultEmbeddingModel)
	v.SetDefault("embedding.dimensions", DefaultEmbeddingDimensions)
	v.SetDefault("embedding.cache_size", DefaultEmbeddingCacheSize)
	v.SetDefault("embedding.batch_size", 100)

	v.SetDefault("index.dir", DefaultIndexDir)
	v.SetDefault("index.concurrency", 4)

	v.SetDefault("conversation.num_followups", DefaultNumFollowups)

	v.SetDefault("diagnosis.relevance_threshold", DefaultRelevanceThreshold)
	v.SetDefault("diagnosis.top_k", DefaultTopK)
	v.SetDefault("diagnosis.temperature", 0.7)
	v.SetDefault("diagnosis.max_tokens", 1500)
	v.SetDefault("diagnosis.evaluator_window", 200)

	v.SetDefault("followup.temperature", 0.7)
	v.SetDefault("followup.max_tokens", 200)
	v.SetDefault("relevance.temperature", 0.0)
	v.SetDefault("relevance.max_tokens", 10)

	retry := apperrors.DefaultRetryConfig()
	breaker := apperrors.DefaultCircuitBreakerConfig()
	v.SetDefault("retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("retry.base_delay", retry.BaseDelay)
	v.SetDefault("retry.max_delay", retry.MaxDelay)
	v.SetDefault("retry.breaker_failures", breaker.FailureThreshold)
	v.SetDefault("retry.breaker_cooldown", breaker.Timeout)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.sweep_interval", time.Minute)

	v.SetDefault("report.font_path", "")

	obs := observability.DefaultConfig()
	v.SetDefault("observability.logging.level", obs.Logging.Level)
	v.SetDefault("observability.logging.format", obs.Logging.Format)
	v.SetDefault("observability.metrics.enabled", obs.Metrics.Enabled)
	v.SetDefault("observability.metrics.prometheus_port", obs.Metrics.PrometheusPort)
	v.SetDefault("observability.tracing.enabled", obs.Tracing.Enabled)
	v.SetDefault("observability.tracing.exporter", obs.Tracing.Exporter)
	v.SetDefault("observability.tracing.otlp_endpoint", obs.Tracing.OTLPEndpoint)
	v.SetDefault("observability.tracing.zipkin_endpoint", obs.Tracing.ZipkinEndpoint)
	v.SetDefault("observability.tracing.sample_rate", obs.Tracing.SampleRate)
	v.SetDefault("observability.tracing.service_name", obs.Tracing.ServiceName)
	v.SetDefault("observability.tracing.service_version", obs.Tracing.ServiceVersion)
}
