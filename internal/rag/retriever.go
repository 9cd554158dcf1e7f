package rag

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"symcheck/internal/logging"
	"symcheck/internal/observability"
)

// DefaultTopK is how many passages a diagnosis retrieves.
const DefaultTopK = 5

// Passage is one retrieved reference chunk. Score is a distance: lower is
// closer, never negative.
type Passage struct {
	Rank       int        `json:"rank"`
	Score      float64    `json:"score"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	SourceType SourceType `json:"source_type"`
	URL        string     `json:"url"`
	ChunkID    int        `json:"chunk_id"`
}

// Retriever turns a free-text query into ranked passages.
type Retriever struct {
	index  VectorIndex
	tracer *observability.TracerProvider
	logger logging.Logger
}

// NewRetriever creates a new retriever over index. tracer may be nil.
func NewRetriever(index VectorIndex, tracer *observability.TracerProvider, logger logging.Logger) *Retriever {
	return &Retriever{
		index:  index,
		tracer: tracer,
		logger: logging.OrNop(logger),
	}
}

// Retrieve returns min(topK, corpus size) passages ordered by ascending score.
// A non-positive topK yields no passages.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (passages []Passage, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if topK <= 0 {
		return []Passage{}, nil
	}

	ctx, span := r.tracer.StartSpan(ctx, observability.SpanRetrieve, attribute.Int(observability.AttrTopK, topK))
	defer func() { observability.EndSpan(span, err) }()

	hits, err := r.index.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	passages = make([]Passage, 0, len(hits))
	for i, hit := range hits {
		chunk, ok := r.index.Chunk(hit.Row)
		if !ok {
			return nil, fmt.Errorf("index returned unknown row %d", hit.Row)
		}
		passages = append(passages, Passage{
			Rank:       i + 1,
			Score:      hit.Distance,
			Title:      chunk.Title,
			Text:       chunk.Text,
			SourceType: chunk.SourceType,
			URL:        chunk.URL,
			ChunkID:    chunk.ChunkID,
		})
	}

	if len(passages) > 0 {
		span.SetAttributes(attribute.Float64(observability.AttrBestScore, passages[0].Score))
		r.logger.Debug("Retrieved %d passages, best score %.3f", len(passages), passages[0].Score)
	} else {
		r.logger.Debug("Retrieved no passages")
	}
	return passages, nil
}

const (
	contextDelimiter = "\n---\n"
	sourceHeader     = "[Source: "
)

// FormatContext frames passages in rank order for grounded generation:
//
//	[Source: <label> - <title>]
//	<text>
//
// with blocks separated by a "---" line.
func FormatContext(passages []Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf(sourceHeader+"%s - %s]\n%s\n", p.SourceType.Label(), p.Title, p.Text))
	}
	return strings.Join(parts, contextDelimiter)
}

// ContextBlock is one parsed block of formatted context.
type ContextBlock struct {
	SourceType SourceType
	Title      string
	Text       string
}

// ParseContext reverses FormatContext. Blocks without a source header are
// skipped. A "---" line only separates blocks when a source header follows
// it, so horizontal rules inside passage text survive. Text that itself
// contains a "---" line followed by a source header cannot be told apart.
func ParseContext(formatted string) []ContextBlock {
	if formatted == "" {
		return nil
	}
	parts := strings.Split(formatted, contextDelimiter+sourceHeader)
	for i := 1; i < len(parts); i++ {
		parts[i] = sourceHeader + parts[i]
	}

	var blocks []ContextBlock
	for _, part := range parts {
		header, body, _ := strings.Cut(part, "\n")
		if !strings.HasPrefix(header, sourceHeader) || !strings.HasSuffix(header, "]") {
			continue
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(header, sourceHeader), "]")
		label, title, ok := strings.Cut(inner, " - ")
		if !ok {
			continue
		}
		source := SourcePrimaryReference
		if label == SourceClinicalReference.Label() {
			source = SourceClinicalReference
		}
		blocks = append(blocks, ContextBlock{
			SourceType: source,
			Title:      title,
			Text:       strings.TrimSuffix(body, "\n"),
		})
	}
	return blocks
}
