// Package testutil holds deterministic fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder is an offline bag-of-words embedder: every lower-cased word is
// hashed into one of Dims buckets and the vector is normalised. Texts that
// share words get close vectors; identical texts get identical vectors.
type HashEmbedder struct {
	Dims      int
	ModelName string
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls int
}

// NewHashEmbedder returns an embedder with dims buckets.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{Dims: dims, ModelName: "hash-test"}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (h *HashEmbedder) Dimensions() int { return h.Dims }

func (h *HashEmbedder) Model() string {
	if h.ModelName == "" {
		return "hash-test"
	}
	return h.ModelName
}

// Calls reports how many texts have been embedded.
func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.Dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.Dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
