package rag

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"symcheck/internal/logging"
)

// BuilderConfig holds index build configuration
type BuilderConfig struct {
	Dir         string // Destination index directory
	BatchSize   int    // Texts per embeddings request (max 100)
	Concurrency int    // Embedding requests in flight
}

// BuildStats summarises one index build.
type BuildStats struct {
	Documents      int
	Chunks         int
	Batches        int
	Manifest       Manifest
	Duration       time.Duration
	IndexDir       string
	ChunksBySource map[SourceType]int
}

// Builder chunks documents, embeds the chunks and persists the index.
type Builder struct {
	config   BuilderConfig
	embedder Embedder
	logger   logging.Logger
}

// NewBuilder creates a new index builder
func NewBuilder(config BuilderConfig, embedder Embedder, logger logging.Logger) *Builder {
	if config.BatchSize <= 0 || config.BatchSize > maxBatchSize {
		config.BatchSize = maxBatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &Builder{
		config:   config,
		embedder: embedder,
		logger:   logging.OrNop(logger),
	}
}

// Build indexes docs into the configured directory, replacing any index
// already there only once the new one is complete.
func (b *Builder) Build(ctx context.Context, docs []Document) (*BuildStats, error) {
	start := time.Now()

	chunks, err := ChunkDocuments(docs)
	if err != nil {
		return nil, fmt.Errorf("chunk documents: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %d documents", len(docs))
	}
	b.logger.Info("Chunked %d documents into %d chunks", len(docs), len(chunks))

	embeddings, batches, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	manifest := newManifest(b.embedder, chunks)
	if err := SaveIndex(ctx, b.config.Dir, chunks, embeddings, manifest); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	stats := &BuildStats{
		Documents:      len(docs),
		Chunks:         len(chunks),
		Batches:        batches,
		Manifest:       manifest,
		Duration:       time.Since(start),
		IndexDir:       b.config.Dir,
		ChunksBySource: map[SourceType]int{},
	}
	for _, c := range chunks {
		stats.ChunksBySource[c.SourceType]++
	}
	b.logger.Info("Index written to %s in %v", b.config.Dir, stats.Duration)
	return stats, nil
}

// embedChunks embeds chunk texts in fixed-size batches, several in flight at
// once. Results land at the chunk's row so order is preserved.
func (b *Builder) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, int, error) {
	embeddings := make([][]float32, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)

	batches := 0
	for start := 0; start < len(chunks); start += b.config.BatchSize {
		end := min(start+b.config.BatchSize, len(chunks))
		batches++

		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			vectors, err := b.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vectors))
			}
			copy(embeddings[start:end], vectors)
			b.logger.Debug("Embedded chunks %d-%d", start, end-1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return embeddings, batches, nil
}
