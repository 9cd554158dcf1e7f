package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "symcheck/internal/errors"
)

func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "SYMCHECK_LLM_API_KEY", "SYMCHECK_LLM_MODEL", "SYMCHECK_DIAGNOSIS_TOP_K"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return t.TempDir()
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, meta, err := Load(WithEnvFiles(), WithSearchPaths(dir))
	require.NoError(t, err)
	require.Empty(t, meta.ConfigFile)

	require.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	require.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	require.Equal(t, 1536, cfg.Embedding.Dimensions)
	require.Equal(t, 10000, cfg.Embedding.CacheSize)
	require.Equal(t, "./store", cfg.Index.Dir)
	require.Equal(t, 3, cfg.Conversation.NumFollowups)
	require.InDelta(t, 0.7, cfg.Diagnosis.RelevanceThreshold, 1e-9)
	require.Equal(t, 5, cfg.Diagnosis.TopK)
	require.InDelta(t, 0.7, float64(cfg.Diagnosis.Temperature), 1e-6)
	require.Equal(t, 1500, cfg.Diagnosis.MaxTokens)
	require.Equal(t, 200, cfg.Followup.MaxTokens)
	require.Zero(t, cfg.Relevance.Temperature)
	require.Equal(t, 10, cfg.Relevance.MaxTokens)
	require.Equal(t, 2, cfg.Retry.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, "info", cfg.Observability.Logging.Level)

	err = cfg.Validate(true)
	require.True(t, apperrors.IsConfiguration(err))
	require.NoError(t, cfg.Validate(false))
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	yaml := `llm:
  model: gpt-4o-mini
diagnosis:
  relevance_threshold: 0.55
  top_k: 8
session:
  ttl: 5m
server:
  allowed_origins: ["https://clinic.example"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "symcheck.yaml"), []byte(yaml), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SYMCHECK_DIAGNOSIS_TOP_K", "3")

	cfg, meta, err := Load(WithEnvFiles(), WithSearchPaths(dir))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "symcheck.yaml"), meta.ConfigFile)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.InDelta(t, 0.55, cfg.Diagnosis.RelevanceThreshold, 1e-9)
	require.Equal(t, 3, cfg.Diagnosis.TopK)
	require.Equal(t, 5*time.Minute, cfg.Session.TTL)
	require.Equal(t, []string{"https://clinic.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.NoError(t, cfg.Validate(true))
}

func TestLoadDotEnvAndOverrides(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SYMCHECK_LLM_MODEL=gpt-4o\nOPENAI_API_KEY=sk-dotenv\n"), 0o600))

	cfg, meta, err := Load(
		WithEnvFiles(envFile, filepath.Join(dir, "missing.env")),
		WithSearchPaths(dir),
		WithOverrides(map[string]any{"conversation.num_followups": 5}),
	)
	require.NoError(t, err)
	require.Equal(t, []string{envFile}, meta.EnvFiles)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, "sk-dotenv", cfg.LLM.APIKey)
	require.Equal(t, 5, cfg.Conversation.NumFollowups)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	_, _, err := Load(WithEnvFiles(), WithConfigFile(filepath.Join(dir, "nope.yaml")))
	require.True(t, apperrors.IsConfiguration(err))
}

func TestValidate(t *testing.T) {
	dir := isolate(t)
	base, _, err := Load(WithEnvFiles(), WithSearchPaths(dir))
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"negative threshold": func(c *Config) { c.Diagnosis.RelevanceThreshold = -0.1 },
		"negative followups": func(c *Config) { c.Conversation.NumFollowups = -1 },
		"zero top k":         func(c *Config) { c.Diagnosis.TopK = 0 },
		"zero dimensions":    func(c *Config) { c.Embedding.Dimensions = 0 },
		"empty index dir":    func(c *Config) { c.Index.Dir = "" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(false); !apperrors.IsConfiguration(err) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}

	zero := base
	zero.Conversation.NumFollowups = 0
	zero.Retry.MaxAttempts = 0
	require.NoError(t, zero.Validate(false))
}

func TestRetryAndBreakerPolicy(t *testing.T) {
	cfg := Config{Retry: RetryConfig{MaxAttempts: 0, BaseDelay: time.Second, BreakerFailures: 7}}
	retry := cfg.RetryPolicy()
	require.Zero(t, retry.MaxAttempts)
	require.Equal(t, time.Second, retry.BaseDelay)
	require.Equal(t, 7, cfg.BreakerPolicy().FailureThreshold)
}
