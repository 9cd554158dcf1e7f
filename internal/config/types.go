package config

import (
	"errors"
	"fmt"
	"time"

	apperrors "symcheck/internal/errors"
	"symcheck/internal/observability"
)

const (
	DefaultLLMModel            = "gpt-3.5-turbo"
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 1536
	DefaultEmbeddingCacheSize  = 10000
	DefaultIndexDir            = "./store"
	DefaultNumFollowups        = 3
	DefaultRelevanceThreshold  = 0.7
	DefaultTopK                = 5
	DefaultServerAddr          = ":8080"
	DefaultSessionTTL          = 30 * time.Minute
	DefaultRequestTimeout      = 60 * time.Second
)

// Config is the full runtime configuration shared by every binary.
type Config struct {
	LLM           LLMConfig            `mapstructure:"llm"`
	Embedding     EmbeddingConfig      `mapstructure:"embedding"`
	Index         IndexConfig          `mapstructure:"index"`
	Conversation  ConversationConfig   `mapstructure:"conversation"`
	Diagnosis     DiagnosisConfig      `mapstructure:"diagnosis"`
	Followup      GenerationConfig     `mapstructure:"followup"`
	Relevance     GenerationConfig     `mapstructure:"relevance"`
	Retry         RetryConfig          `mapstructure:"retry"`
	Server        ServerConfig         `mapstructure:"server"`
	Session       SessionConfig        `mapstructure:"session"`
	Report        ReportConfig         `mapstructure:"report"`
	Observability observability.Config `mapstructure:"observability"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig selects the embedding model. It must match the one the
// index was built with.
type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size"`
	BatchSize  int    `mapstructure:"batch_size"`
}

type IndexConfig struct {
	Dir         string `mapstructure:"dir"`
	Concurrency int    `mapstructure:"concurrency"`
}

type ConversationConfig struct {
	NumFollowups int `mapstructure:"num_followups"`
}

// DiagnosisConfig tunes retrieval and report generation.
type DiagnosisConfig struct {
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	TopK               int     `mapstructure:"top_k"`
	Temperature        float32 `mapstructure:"temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	EvaluatorWindow    int     `mapstructure:"evaluator_window"`
}

// GenerationConfig holds sampling settings for one prompt kind.
type GenerationConfig struct {
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RetryConfig wraps upstream calls. MaxAttempts of zero disables retrying.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ReportConfig points at the TrueType font used for PDF export.
type ReportConfig struct {
	FontPath string `mapstructure:"font_path"`
}

// Metadata records where the configuration came from.
type Metadata struct {
	ConfigFile string
	EnvFiles   []string
	LoadedAt   time.Time
}

// RetryPolicy converts the retry section into the errors package form.
func (c Config) RetryPolicy() apperrors.RetryConfig {
	policy := apperrors.DefaultRetryConfig()
	policy.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.BaseDelay > 0 {
		policy.BaseDelay = c.Retry.BaseDelay
	}
	if c.Retry.MaxDelay > 0 {
		policy.MaxDelay = c.Retry.MaxDelay
	}
	return policy
}

// BreakerPolicy converts the breaker settings into the errors package form.
func (c Config) BreakerPolicy() apperrors.CircuitBreakerConfig {
	policy := apperrors.DefaultCircuitBreakerConfig()
	if c.Retry.BreakerFailures > 0 {
		policy.FailureThreshold = c.Retry.BreakerFailures
	}
	if c.Retry.BreakerCooldown > 0 {
		policy.Timeout = c.Retry.BreakerCooldown
	}
	return policy
}

// Validate reports the first fatal problem as a ConfigurationError.
// requireKey is false for commands that never call the model.
func (c Config) Validate(requireKey bool) error {
	switch {
	case requireKey && c.LLM.APIKey == "":
		return apperrors.NewConfigurationError("llm.api_key", errors.New("OPENAI_API_KEY is not set"))
	case c.Diagnosis.RelevanceThreshold < 0:
		return apperrors.NewConfigurationError("diagnosis.relevance_threshold", fmt.Errorf("must be non-negative, got %v", c.Diagnosis.RelevanceThreshold))
	case c.Conversation.NumFollowups < 0:
		return apperrors.NewConfigurationError("conversation.num_followups", fmt.Errorf("must be non-negative, got %d", c.Conversation.NumFollowups))
	case c.Diagnosis.TopK <= 0:
		return apperrors.NewConfigurationError("diagnosis.top_k", fmt.Errorf("must be positive, got %d", c.Diagnosis.TopK))
	case c.Embedding.Dimensions <= 0:
		return apperrors.NewConfigurationError("embedding.dimensions", fmt.Errorf("must be positive, got %d", c.Embedding.Dimensions))
	case c.Retry.MaxAttempts < 0:
		return apperrors.NewConfigurationError("retry.max_attempts", fmt.Errorf("must be non-negative, got %d", c.Retry.MaxAttempts))
	case c.Index.Dir == "":
		return apperrors.NewConfigurationError("index.dir", errors.New("must not be empty"))
	}
	return nil
}
