// Package vectorstore provides the per-datasource embedding indexes.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

// ErrRetrieval marks an unavailable or corrupted index. An empty index is
// not an error; searches against it return an empty result set.
var ErrRetrieval = errors.New("retrieval failed")

// Store is one vector index per datasource. Readers may run concurrently
// with each other and with a single in-flight append; writes for the same
// datasource are serialized by the implementation.
type Store interface {
	// Add appends chunks to the datasource's index.
	Add(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error
	// Search returns up to fetchK candidates ordered by descending
	// similarity to queryEmbedding.
	Search(ctx context.Context, datasourceID string, queryEmbedding []float32, fetchK int) ([]models.RetrievalCandidate, error)
	// Rebuild drops the datasource's index and re-adds chunks.
	Rebuild(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error
	// Count reports how many chunks the datasource's index holds.
	Count(ctx context.Context, datasourceID string) (int, error)
}

// New selects the store implementation from configuration.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Vectorstore.Provider {
	case "chromem":
		return NewChromemStore(cfg.Vectorstore.PersistDirectory)
	case "pgvector":
		return NewPgvectorStore(cfg.Vectorstore, cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrRetrieval, cfg.Vectorstore.Provider)
	}
}

// lockMap hands out one mutex per datasource so ingestion is single-writer
// per index without blocking other datasources.
type lockMap struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockMap() *lockMap {
	return &lockMap{locks: make(map[string]*sync.Mutex)}
}

func (l *lockMap) get(datasourceID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[datasourceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[datasourceID] = m
	}
	return m
}
