package vectorstore

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"banking-rag/internal/models"
)

// ChromemStore keeps one persistent chromem-go collection per datasource.
// Collections survive process restarts at the configured path; loading a
// persisted collection with zero chunks is valid.
type ChromemStore struct {
	db     *chromem.DB
	writes *lockMap
}

func NewChromemStore(persistDirectory string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(persistDirectory, false)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem at %s: %v", ErrRetrieval, persistDirectory, err)
	}
	return &ChromemStore{db: db, writes: newLockMap()}, nil
}

func (s *ChromemStore) Add(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	mu := s.writes.get(datasourceID)
	mu.Lock()
	defer mu.Unlock()

	col, err := s.db.GetOrCreateCollection(datasourceID, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %v", ErrRetrieval, datasourceID, err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        c.ChunkID,
			Content:   c.Text,
			Metadata:  c.Metadata,
			Embedding: c.Embedding,
		})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: adding to %s: %v", ErrRetrieval, datasourceID, err)
	}
	log.Debug().Str("datasource", datasourceID).Int("chunks", len(docs)).Msg("Added chunks to vector index")
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, datasourceID string, queryEmbedding []float32, fetchK int) ([]models.RetrievalCandidate, error) {
	col := s.db.GetCollection(datasourceID, nil)
	if col == nil {
		// No chunks were ever ingested for this datasource.
		return nil, nil
	}

	// chromem rejects queries asking for more results than the collection
	// holds.
	n := fetchK
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrRetrieval, datasourceID, err)
	}

	candidates := make([]models.RetrievalCandidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, models.RetrievalCandidate{
			Chunk: models.DocumentChunk{
				ChunkID:      res.ID,
				DatasourceID: datasourceID,
				Text:         res.Content,
				Embedding:    res.Embedding,
				Metadata:     res.Metadata,
			},
			Similarity: res.Similarity,
		})
	}
	return candidates, nil
}

func (s *ChromemStore) Rebuild(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error {
	mu := s.writes.get(datasourceID)
	mu.Lock()
	if s.db.GetCollection(datasourceID, nil) != nil {
		if err := s.db.DeleteCollection(datasourceID); err != nil {
			mu.Unlock()
			return fmt.Errorf("%w: dropping %s: %v", ErrRetrieval, datasourceID, err)
		}
	}
	mu.Unlock()
	return s.Add(ctx, datasourceID, chunks)
}

func (s *ChromemStore) Count(ctx context.Context, datasourceID string) (int, error) {
	col := s.db.GetCollection(datasourceID, nil)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}
