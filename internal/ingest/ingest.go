// Package ingest builds the per-datasource vector indexes from the
// configured document folders.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"banking-rag/internal/config"
	"banking-rag/internal/llm"
	"banking-rag/internal/loader"
	"banking-rag/internal/models"
	"banking-rag/internal/registry"
	"banking-rag/internal/splitter"
	"banking-rag/internal/vectorstore"
)

const embedBatchSize = 32

type Builder struct {
	registry *registry.Registry
	splitter *splitter.Splitter
	embedder embeddings.Embedder
	store    vectorstore.Store

	// docsDir is the base directory the configured folder names resolve
	// against.
	docsDir string

	timeout    time.Duration
	maxRetries uint64
}

func NewBuilder(reg *registry.Registry, split *splitter.Splitter, embedder embeddings.Embedder, store vectorstore.Store, docsDir string, llmCfg config.LLMConfig) *Builder {
	return &Builder{
		registry:   reg,
		splitter:   split,
		embedder:   embedder,
		store:      store,
		docsDir:    docsDir,
		timeout:    time.Duration(llmCfg.TimeoutSeconds) * time.Second,
		maxRetries: uint64(llmCfg.MaxRetries),
	}
}

// BuildAll ingests every datasource. Datasources whose index already holds
// chunks are skipped unless reindex is set, in which case their index is
// fully rebuilt.
func (b *Builder) BuildAll(ctx context.Context, reindex bool) error {
	for _, ds := range b.registry.All() {
		if err := b.buildDatasource(ctx, ds, reindex); err != nil {
			return fmt.Errorf("ingesting datasource %s: %w", ds.ID, err)
		}
	}
	return nil
}

func (b *Builder) buildDatasource(ctx context.Context, ds *config.Datasource, reindex bool) error {
	count, err := b.store.Count(ctx, ds.ID)
	if err != nil {
		return err
	}
	if count > 0 && !reindex {
		log.Info().Str("datasource", ds.ID).Int("chunks", count).Msg("Index already populated, skipping")
		return nil
	}

	var flat []models.DocumentChunk
	for _, folder := range ds.Folders {
		docs, err := loader.FetchDocuments(filepath.Join(b.docsDir, folder))
		if err != nil {
			return err
		}
		for _, doc := range docs {
			split, err := b.splitter.Split(ds.ID, doc)
			if err != nil {
				return err
			}
			flat = append(flat, split...)
		}
	}
	log.Info().Str("datasource", ds.ID).Int("chunks", len(flat)).Msg("Split documents")

	for start := 0; start < len(flat); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(flat) {
			end = len(flat)
		}
		batch := flat[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := llm.Do(ctx, b.timeout, b.maxRetries, func(callCtx context.Context) error {
			var embErr error
			vectors, embErr = b.embedder.EmbedDocuments(callCtx, texts)
			return embErr
		})
		if err != nil {
			return fmt.Errorf("%w: embedding batch: %v", llm.ErrLLMCall, err)
		}
		for i := range batch {
			flat[start+i].Embedding = vectors[i]
		}
	}

	if count > 0 {
		return b.store.Rebuild(ctx, ds.ID, flat)
	}
	return b.store.Add(ctx, ds.ID, flat)
}
