package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Fever is common. Is it high?  Yes!\nSee a doctor.3.5 stays")
	require.Equal(t, []string{"Fever is common.", "Is it high?", "Yes!", "See a doctor.3.5 stays"}, got)
}

func TestChunker_ChunkText(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 6, ChunkOverlap: 3})
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	text := "One two three. Four five. Six seven eight. Nine."
	chunks := chunker.ChunkText(text)

	// sentences: [3 words][2][3][1]; window 6 words, overlap 3
	require.Equal(t, []string{
		"One two three. Four five.",
		"Four five. Six seven eight. Nine.",
	}, chunks)
}

func TestChunker_LongSentenceStandsAlone(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 3, ChunkOverlap: 1})
	require.NoError(t, err)

	chunks := chunker.ChunkText("a b c d e f. g.")
	require.Equal(t, []string{"a b c d e f.", "g."}, chunks)
}

func TestNewChunkerValidates(t *testing.T) {
	_, err := NewChunker(ChunkerConfig{ChunkSize: 0})
	require.Error(t, err)
	_, err = NewChunker(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 10})
	require.Error(t, err)
}

func TestChunkDocumentsNumbersRows(t *testing.T) {
	long := strings.Repeat("Chest pain may come from the heart or the lungs. ", 60)
	docs := []Document{
		{ID: "1", Title: "Chest Pain", AlsoCalled: "Angina", Summary: long, URL: "https://medlineplus.gov/chestpain.html", SourceType: SourcePrimaryReference},
		{ID: TextbookID, Title: TextbookTitle, Summary: "Short clinical note.", URL: TextbookURL, SourceType: SourceClinicalReference},
	}

	chunks, err := ChunkDocuments(docs)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		require.Equal(t, i, c.ChunkID)
	}
	require.True(t, strings.HasPrefix(chunks[0].Text, "Chest Pain. Also known as: Angina. Chest pain may"))
	last := chunks[len(chunks)-1]
	require.Equal(t, SourceClinicalReference, last.SourceType)
	require.Equal(t, TextbookTitle+". Short clinical note.", last.Text)
}

func TestSourceTypeLabel(t *testing.T) {
	require.Equal(t, "MedlinePlus", SourcePrimaryReference.Label())
	require.Equal(t, "Textbook", SourceClinicalReference.Label())
	require.Equal(t, "MedlinePlus", SourceType("unknown").Label())
}
