package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"

	apperrors "symcheck/internal/errors"
	"symcheck/internal/logging"
	"symcheck/internal/token"
)

// maxEmbeddingTokens is the input limit of the OpenAI embedding models.
const maxEmbeddingTokens = 8191

// maxBatchSize caps how many inputs go into one embeddings request.
const maxBatchSize = 100

// EmbedderConfig holds embedding configuration
type EmbedderConfig struct {
	Model      string // "text-embedding-3-small"
	APIKey     string
	BaseURL    string // Optional, defaults to OpenAI
	Dimensions int    // Vector size the model produces
	CacheSize  int    // LRU cache size, default 10000
	Retry      apperrors.RetryConfig
	Timeout    time.Duration
}

// Embedder generates text embeddings. Queries and corpus must go through the
// same Embedder so they share a vector space.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts (up to 100)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// Model names the embedding model, recorded alongside a built index
	Model() string
}

// openaiEmbedder implements Embedder using the OpenAI embeddings API
type openaiEmbedder struct {
	config EmbedderConfig
	client *openai.Client
	cache  *lru.Cache[string, []float32]
	logger logging.Logger
}

// NewEmbedder creates a new embedder
func NewEmbedder(config EmbedderConfig, logger logging.Logger) (Embedder, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("embedding.api_key", errors.New("OPENAI_API_KEY is not set"))
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 1536
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 10000
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	cache, err := lru.New[string, []float32](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &openaiEmbedder{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		cache:  cache,
		logger: logging.OrNop(logger),
	}, nil
}

// Embed generates embedding for a single text
func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (e *openaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("batch size exceeds limit: %d > %d", len(texts), maxBatchSize)
	}

	results := make([][]float32, len(texts))
	uncachedIndices := []int{}
	uncachedTexts := []string{}

	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			results[i] = cached
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, token.Truncate(text, maxEmbeddingTokens))
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	embeddings, err := apperrors.RetryWithResult(ctx, e.config.Retry, func(ctx context.Context) ([][]float32, error) {
		return e.callAPI(ctx, uncachedTexts)
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	for i, idx := range uncachedIndices {
		e.cache.Add(texts[idx], embeddings[i])
		results[idx] = embeddings[i]
	}
	return results, nil
}

// Dimensions returns the configured embedding dimension
func (e *openaiEmbedder) Dimensions() int {
	return e.config.Dimensions
}

func (e *openaiEmbedder) Model() string {
	return e.config.Model
}

func (e *openaiEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, apperrors.FromStatus(apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, apperrors.FromStatus(reqErr.HTTPStatusCode, err)
		}
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, apperrors.NewPermanentError(fmt.Errorf("invalid index: %d", item.Index), "malformed embeddings response")
		}
		if len(item.Embedding) != e.config.Dimensions {
			return nil, apperrors.NewConfigurationError("embedding.dimensions",
				fmt.Errorf("model %s returned %d dimensions, configured %d", e.config.Model, len(item.Embedding), e.config.Dimensions))
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, vec := range embeddings {
		if vec == nil {
			return nil, apperrors.NewPermanentError(fmt.Errorf("missing embedding %d", i), "malformed embeddings response")
		}
	}
	return embeddings, nil
}
