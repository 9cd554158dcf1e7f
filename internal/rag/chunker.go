package rag

import (
	"fmt"
	"strings"
	"unicode"
)

// SourceType tags where a passage came from.
type SourceType string

const (
	// SourcePrimaryReference is patient-facing reference material (MedlinePlus).
	SourcePrimaryReference SourceType = "primary_reference"
	// SourceClinicalReference is clinical textbook material.
	SourceClinicalReference SourceType = "clinical_reference"
)

// Label is the human-readable name used when framing context for the model.
func (s SourceType) Label() string {
	if s == SourceClinicalReference {
		return "Textbook"
	}
	return "MedlinePlus"
}

// Document is one ingested source record before chunking.
type Document struct {
	ID         string
	Title      string
	AlsoCalled string
	Summary    string
	URL        string
	SourceType SourceType
}

// FullText prefixes the summary with the title and aliases so every chunk
// keeps its topic in view.
func (d Document) FullText() string {
	var sb strings.Builder
	sb.WriteString(d.Title)
	sb.WriteString(". ")
	if d.AlsoCalled != "" {
		sb.WriteString("Also known as: ")
		sb.WriteString(d.AlsoCalled)
		sb.WriteString(". ")
	}
	sb.WriteString(d.Summary)
	return sb.String()
}

// Chunk is one indexed row. Its position in the index is its ChunkID.
type Chunk struct {
	ChunkID    int        `json:"chunk_id"`
	Title      string     `json:"title"`
	Text       string     `json:"chunk_text"`
	SourceID   string     `json:"source_id"`
	URL        string     `json:"url"`
	SourceType SourceType `json:"source_type"`
}

// ChunkerConfig holds chunking configuration
type ChunkerConfig struct {
	ChunkSize    int // Words per chunk
	ChunkOverlap int // Words carried over into the next chunk
}

// DefaultChunkerConfig returns the window used for a source type: long
// windows for dense textbook prose, short ones for topic summaries.
func DefaultChunkerConfig(source SourceType) ChunkerConfig {
	if source == SourceClinicalReference {
		return ChunkerConfig{ChunkSize: 600, ChunkOverlap: 150}
	}
	return ChunkerConfig{ChunkSize: 400, ChunkOverlap: 50}
}

// Chunker splits text into overlapping sentence windows.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a new chunker
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", config.ChunkSize, config.ChunkOverlap)
	}
	return &Chunker{config: config}, nil
}

// ChunkText packs whole sentences into windows of at most ChunkSize words.
// A single sentence longer than the window becomes its own chunk. Each new
// window starts with the trailing sentences of the previous one that fit in
// ChunkOverlap words.
func (c *Chunker) ChunkText(text string) []string {
	var chunks []string
	var current []string
	currentWords := 0

	for _, sentence := range splitSentences(text) {
		words := len(strings.Fields(sentence))
		if words == 0 {
			continue
		}

		if currentWords+words > c.config.ChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			var overlap []string
			overlapWords := 0
			for i := len(current) - 1; i >= 0; i-- {
				n := len(strings.Fields(current[i]))
				if overlapWords+n > c.config.ChunkOverlap {
					break
				}
				overlap = append([]string{current[i]}, overlap...)
				overlapWords += n
			}
			current = append(overlap, sentence)
			currentWords = overlapWords + words
			continue
		}

		current = append(current, sentence)
		currentWords += words
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// ChunkDocuments chunks every document with its source's window and numbers
// the chunks from 0 in document order.
func ChunkDocuments(docs []Document) ([]Chunk, error) {
	chunkers := make(map[SourceType]*Chunker)
	var out []Chunk

	for _, doc := range docs {
		chunker, ok := chunkers[doc.SourceType]
		if !ok {
			var err error
			chunker, err = NewChunker(DefaultChunkerConfig(doc.SourceType))
			if err != nil {
				return nil, err
			}
			chunkers[doc.SourceType] = chunker
		}

		for _, text := range chunker.ChunkText(doc.FullText()) {
			out = append(out, Chunk{
				ChunkID:    len(out),
				Title:      doc.Title,
				Text:       text,
				SourceID:   doc.ID,
				URL:        doc.URL,
				SourceType: doc.SourceType,
			})
		}
	}
	return out, nil
}

// splitSentences splits after '.', '!' or '?' wherever whitespace follows.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}
