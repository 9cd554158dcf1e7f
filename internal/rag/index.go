package rag

import (
	"bufio"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v3"

	apperrors "symcheck/internal/errors"
)

// Index artifact names inside an index directory.
const (
	VectorsDir     = "vectors"
	EmbeddingsFile = "embeddings.gob"
	ChunksFile     = "chunks.jsonl"
	ManifestFile   = "index.yaml"
)

// Manifest is the small config record saved next to an index.
type Manifest struct {
	Model                   string    `yaml:"model_name" json:"model_name"`
	TotalChunks             int       `yaml:"total_chunks" json:"total_chunks"`
	PrimaryReferenceChunks  int       `yaml:"medlineplus_chunks" json:"medlineplus_chunks"`
	ClinicalReferenceChunks int       `yaml:"textbook_chunks" json:"textbook_chunks"`
	EmbeddingDim            int       `yaml:"embedding_dim" json:"embedding_dim"`
	BuiltAt                 time.Time `yaml:"built_at" json:"built_at"`
}

func newManifest(embedder Embedder, chunks []Chunk) Manifest {
	m := Manifest{
		Model:        embedder.Model(),
		TotalChunks:  len(chunks),
		EmbeddingDim: embedder.Dimensions(),
		BuiltAt:      time.Now().UTC(),
	}
	for _, c := range chunks {
		if c.SourceType == SourceClinicalReference {
			m.ClinicalReferenceChunks++
		} else {
			m.PrimaryReferenceChunks++
		}
	}
	return m
}

// ErrIncompleteIndex matches any IncompleteIndexError via errors.Is.
var ErrIncompleteIndex = errors.New("incomplete index")

// IncompleteIndexError lists every artifact missing from an index directory.
type IncompleteIndexError struct {
	Dir     string
	Missing []string
}

func (e *IncompleteIndexError) Error() string {
	return fmt.Sprintf("incomplete index in %s: missing %s", e.Dir, strings.Join(e.Missing, ", "))
}

func (e *IncompleteIndexError) Is(target error) bool {
	return target == ErrIncompleteIndex
}

// SaveIndex writes the four index artifacts into a staging directory next to
// dir and swaps it into place, so a reader never sees a partial set.
func SaveIndex(ctx context.Context, dir string, chunks []Chunk, embeddings [][]float32, manifest Manifest) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create index parent: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	db, err := chromem.NewPersistentDB(filepath.Join(staging, VectorsDir), false)
	if err != nil {
		return fmt.Errorf("create vector store: %w", err)
	}
	// Embeddings are precomputed; the collection never needs to embed.
	collection, err := db.GetOrCreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding not available while saving")
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if err := addChunks(ctx, collection, chunks, embeddings); err != nil {
		return err
	}

	if err := writeEmbeddings(filepath.Join(staging, EmbeddingsFile), embeddings); err != nil {
		return err
	}
	if err := writeChunks(filepath.Join(staging, ChunksFile), chunks); err != nil {
		return err
	}
	if err := writeManifest(filepath.Join(staging, ManifestFile), manifest); err != nil {
		return err
	}

	backup := ""
	if _, err := os.Stat(dir); err == nil {
		backup = staging + ".previous"
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("move previous index aside: %w", err)
		}
	}
	if err := os.Rename(staging, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("install index: %w", err)
	}
	committed = true
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// LoadIndex opens a saved index. All four artifacts must be present before
// any is read, the counts must agree, and the stored model and dimension must
// match embedder. Every failure is a configuration error.
func LoadIndex(dir string, embedder Embedder) (*Index, error) {
	var missing []string
	for _, name := range []string{VectorsDir, EmbeddingsFile, ChunksFile, ManifestFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewConfigurationError("index.dir", &IncompleteIndexError{Dir: dir, Missing: missing})
	}

	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, apperrors.NewConfigurationError("index.dir", err)
	}
	if manifest.EmbeddingDim != embedder.Dimensions() {
		return nil, apperrors.NewConfigurationError("embedding.dimensions",
			fmt.Errorf("index built with %d dimensions, embedder produces %d", manifest.EmbeddingDim, embedder.Dimensions()))
	}
	if manifest.Model != embedder.Model() {
		return nil, apperrors.NewConfigurationError("embedding.model",
			fmt.Errorf("index built with model %q, embedder uses %q", manifest.Model, embedder.Model()))
	}

	embeddings, err := readEmbeddings(filepath.Join(dir, EmbeddingsFile))
	if err != nil {
		return nil, apperrors.NewConfigurationError("index.dir", err)
	}
	chunks, err := readChunks(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, apperrors.NewConfigurationError("index.dir", err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(dir, VectorsDir), false)
	if err != nil {
		return nil, apperrors.NewConfigurationError("index.dir", fmt.Errorf("open vector store: %w", err))
	}
	collection := db.GetCollection(collectionName, embeddingFunc(embedder))
	if collection == nil {
		return nil, apperrors.NewConfigurationError("index.dir", fmt.Errorf("vector store has no %q collection", collectionName))
	}

	counts := []int{manifest.TotalChunks, len(chunks), len(embeddings), collection.Count()}
	for _, n := range counts[1:] {
		if n != counts[0] {
			return nil, apperrors.NewConfigurationError("index.dir",
				fmt.Errorf("index artifacts disagree on size (manifest, chunks, embeddings, vectors): %v", counts))
		}
	}
	for i, vec := range embeddings {
		if len(vec) != manifest.EmbeddingDim {
			return nil, apperrors.NewConfigurationError("index.dir",
				fmt.Errorf("embedding %d has %d dimensions, manifest says %d", i, len(vec), manifest.EmbeddingDim))
		}
	}

	return &Index{
		db:         db,
		collection: collection,
		chunks:     chunks,
		embeddings: embeddings,
		manifest:   manifest,
	}, nil
}

func writeEmbeddings(path string, embeddings [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create embeddings: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(embeddings); err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return f.Sync()
}

func readEmbeddings(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()
	var embeddings [][]float32
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	return embeddings, nil
}

func writeChunks(path string, chunks []Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunks: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk %d: %w", c.ChunkID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return f.Sync()
}

func readChunks(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks: %w", err)
	}
	defer f.Close()

	var chunks []Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("decode chunk on line %d: %w", line, err)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return chunks, nil
}

func writeManifest(path string, manifest Manifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

// ReadManifest returns the config record of the index in dir without
// opening the vectors.
func ReadManifest(dir string) (Manifest, error) {
	return readManifest(filepath.Join(dir, ManifestFile))
}
