// Package retriever performs vector search with maximal-marginal-relevance
// selection over a datasource's embedding index.
package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"banking-rag/internal/config"
	"banking-rag/internal/llm"
	"banking-rag/internal/models"
	"banking-rag/internal/vectorstore"
)

type Retriever struct {
	store    vectorstore.Store
	embedder embeddings.Embedder

	timeout    time.Duration
	maxRetries uint64
}

func New(store vectorstore.Store, embedder embeddings.Embedder, llmCfg config.LLMConfig) *Retriever {
	return &Retriever{
		store:      store,
		embedder:   embedder,
		timeout:    time.Duration(llmCfg.TimeoutSeconds) * time.Second,
		maxRetries: uint64(llmCfg.MaxRetries),
	}
}

// Retrieve embeds the query and returns up to top_k chunks from the
// datasource's index. An empty index yields an empty, non-error result;
// only an unavailable index is an error.
func (r *Retriever) Retrieve(ctx context.Context, ds *config.Datasource, query string) ([]models.RetrievalCandidate, error) {
	var queryEmbedding []float32
	err := llm.Do(ctx, r.timeout, r.maxRetries, func(callCtx context.Context) error {
		var embErr error
		queryEmbedding, embErr = r.embedder.EmbedQuery(callCtx, query)
		return embErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", llm.ErrLLMCall, err)
	}

	rc := ds.RetrieverConfig
	candidates, err := r.store.Search(ctx, ds.ID, queryEmbedding, rc.FetchK)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("datasource", ds.ID).Int("fetched", len(candidates)).Msg("Fetched candidates")

	if rc.SearchType == "similarity" {
		if len(candidates) > rc.TopK {
			candidates = candidates[:rc.TopK]
		}
		return candidates, nil
	}
	return selectMMR(candidates, rc.TopK, rc.LambdaMult), nil
}
