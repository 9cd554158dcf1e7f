package rag

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "medical_reference"

// Hit is one nearest-neighbour match: a row in the index and its distance.
type Hit struct {
	Row      int
	Distance float64
}

// VectorIndex is the read side of an index: nearest-neighbour search plus
// row metadata lookup. Implementations must be safe for concurrent reads.
type VectorIndex interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Chunk(row int) (Chunk, bool)
	Len() int
}

// Index is a chromem-go collection over chunk embeddings together with the
// row metadata it was built from.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     []Chunk
	embeddings [][]float32
	manifest   Manifest
}

// NewMemoryIndex builds an in-memory index. embeddings[i] belongs to chunks[i].
func NewMemoryIndex(ctx context.Context, chunks []Chunk, embeddings [][]float32, embedder Embedder) (*Index, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	if err := addChunks(ctx, collection, chunks, embeddings); err != nil {
		return nil, err
	}
	return &Index{
		db:         db,
		collection: collection,
		chunks:     chunks,
		embeddings: embeddings,
		manifest:   newManifest(embedder, chunks),
	}, nil
}

func embeddingFunc(embedder Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
}

// addChunks stores each chunk under its row number so search hits map
// straight back to metadata.
func addChunks(ctx context.Context, collection *chromem.Collection, chunks []Chunk, embeddings [][]float32) error {
	for row, chunk := range chunks {
		err := collection.AddDocument(ctx, chromem.Document{
			ID:        strconv.Itoa(row),
			Content:   chunk.Text,
			Embedding: embeddings[row],
			Metadata: map[string]string{
				"source_type": string(chunk.SourceType),
			},
		})
		if err != nil {
			return fmt.Errorf("add chunk %d: %w", row, err)
		}
	}
	return nil
}

// Search embeds query with the index's embedder and returns up to k hits,
// closest first. k larger than the corpus returns the whole corpus.
//
// chromem ranks by cosine similarity over unit vectors; the reported
// distance is the squared Euclidean distance between those unit vectors,
// 2 - 2*similarity.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k > ix.collection.Count() {
		k = ix.collection.Count()
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	results, err := ix.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		row, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("corrupt document id %q: %w", r.ID, err)
		}
		distance := 2 - 2*float64(r.Similarity)
		if distance < 0 {
			distance = 0
		}
		hits = append(hits, Hit{Row: row, Distance: distance})
	}
	return hits, nil
}

// Chunk returns the metadata row for a hit.
func (ix *Index) Chunk(row int) (Chunk, bool) {
	if row < 0 || row >= len(ix.chunks) {
		return Chunk{}, false
	}
	return ix.chunks[row], true
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Manifest describes how the index was built.
func (ix *Index) Manifest() Manifest {
	return ix.manifest
}
