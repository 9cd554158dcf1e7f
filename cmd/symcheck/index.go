package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"symcheck/internal/config"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/logging"
	"symcheck/internal/rag"
)

func newIndexCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or inspect the reference index",
	}
	cmd.AddCommand(newIndexBuildCommand(flags), newIndexInspectCommand(flags))
	return cmd
}

func newIndexBuildCommand(flags *rootFlags) *cobra.Command {
	var medlinePath, textbookPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed MedlinePlus topics and the textbook into a fresh index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if medlinePath == "" && textbookPath == "" {
				return errors.New("at least one of --medlineplus or --textbook is required")
			}
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(true); err != nil {
				return err
			}
			if _, err := newObservability(cmd.Context(), cfg, os.Stderr); err != nil {
				return err
			}

			docs, err := loadSources(medlinePath, textbookPath)
			if err != nil {
				return err
			}
			return buildIndex(cmd, cfg, docs)
		},
	}
	cmd.Flags().StringVar(&medlinePath, "medlineplus", "", "MedlinePlus health topics XML export")
	cmd.Flags().StringVar(&textbookPath, "textbook", "", "textbook sections as a JSON object of title to text")
	return cmd
}

func loadSources(medlinePath, textbookPath string) ([]rag.Document, error) {
	var docs []rag.Document
	if medlinePath != "" {
		f, err := os.Open(medlinePath)
		if err != nil {
			return nil, apperrors.NewConfigurationError("medlineplus", err)
		}
		defer f.Close()
		topics, err := rag.ParseMedlinePlus(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", medlinePath, err)
		}
		docs = append(docs, topics...)
	}
	if textbookPath != "" {
		f, err := os.Open(textbookPath)
		if err != nil {
			return nil, apperrors.NewConfigurationError("textbook", err)
		}
		defer f.Close()
		book, err := rag.ParseTextbook(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", textbookPath, err)
		}
		docs = append(docs, book)
	}
	if len(docs) == 0 {
		return nil, errors.New("no usable documents in the given sources")
	}
	return docs, nil
}

func buildIndex(cmd *cobra.Command, cfg config.Config, docs []rag.Document) error {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	builder := rag.NewBuilder(rag.BuilderConfig{
		Dir:         cfg.Index.Dir,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Index.Concurrency,
	}, embedder, logging.NewComponentLogger("indexer"))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d documents into %s\n", cyan("Indexing"), len(docs), cfg.Index.Dir)
	stats, err := builder.Build(cmd.Context(), docs)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %d chunks in %d batches (%s)\n", green("✓ Built"), stats.Chunks, stats.Batches, stats.Duration.Round(time.Millisecond))
	sources := make([]string, 0, len(stats.ChunksBySource))
	for source := range stats.ChunksBySource {
		sources = append(sources, string(source))
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(out, "  %-20s %s\n", source, gray(fmt.Sprint(stats.ChunksBySource[rag.SourceType(source)])))
	}
	return nil
}

func newIndexInspectCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the manifest of the configured index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			manifest, err := rag.ReadManifest(cfg.Index.Dir)
			if err != nil {
				return apperrors.NewConfigurationError("index.dir", err)
			}
			out, err := yaml.Marshal(manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s", bold("Index"), cfg.Index.Dir, out)
			if manifest.Model != cfg.Embedding.Model || manifest.EmbeddingDim != cfg.Embedding.Dimensions {
				fmt.Fprintln(cmd.OutOrStdout(), yellow(fmt.Sprintf(
					"⚠ configured embedding %s/%d does not match the index; rebuild or change embedding.model",
					cfg.Embedding.Model, cfg.Embedding.Dimensions)))
			}
			return nil
		},
	}
}
