package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

func chunk(id, text string, embedding []float32) models.DocumentChunk {
	return models.DocumentChunk{
		ChunkID:      id,
		DatasourceID: "cartao_credito",
		Text:         text,
		Embedding:    embedding,
		Metadata:     map[string]string{"document_id": "doc.txt"},
	}
}

func testChunks() []models.DocumentChunk {
	return []models.DocumentChunk{
		chunk("cartao_credito/doc.txt#0", "limite do cartão platinum", []float32{1, 0, 0}),
		chunk("cartao_credito/doc.txt#1", "anuidade do cartão gold", []float32{0.8, 0.6, 0}),
		chunk("cartao_credito/doc.txt#2", "bloqueio por perda ou roubo", []float32{0, 1, 0}),
	}
}

func TestChromemSearchOrdersBySimilarity(t *testing.T) {
	store, err := NewChromemStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "cartao_credito", testChunks()))

	results, err := store.Search(ctx, "cartao_credito", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "cartao_credito/doc.txt#0", results[0].Chunk.ChunkID)
	assert.Equal(t, "cartao_credito/doc.txt#1", results[1].Chunk.ChunkID)
	assert.Equal(t, "cartao_credito/doc.txt#2", results[2].Chunk.ChunkID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Greater(t, results[1].Similarity, results[2].Similarity)
	assert.Equal(t, "limite do cartão platinum", results[0].Chunk.Text)
}

func TestChromemSearchClampsFetchK(t *testing.T) {
	store, err := NewChromemStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "cartao_credito", testChunks()))

	results, err := store.Search(ctx, "cartao_credito", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestChromemEmptyIndexIsNotAnError(t *testing.T) {
	store, err := NewChromemStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	results, err := store.Search(ctx, "conta_corrente", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	count, err := store.Count(ctx, "conta_corrente")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChromemRebuildReplaces(t *testing.T) {
	store, err := NewChromemStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "cartao_credito", testChunks()))

	replacement := []models.DocumentChunk{
		chunk("cartao_credito/novo.txt#0", "programa de pontos", []float32{0, 0, 1}),
	}
	require.NoError(t, store.Rebuild(ctx, "cartao_credito", replacement))

	count, err := store.Count(ctx, "cartao_credito")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.Search(ctx, "cartao_credito", []float32{0, 0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cartao_credito/novo.txt#0", results[0].Chunk.ChunkID)
}

func TestChromemPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, "cartao_credito", testChunks()))

	reopened, err := NewChromemStore(dir)
	require.NoError(t, err)

	count, err := reopened.Count(ctx, "cartao_credito")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := reopened.Search(ctx, "cartao_credito", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cartao_credito/doc.txt#0", results[0].Chunk.ChunkID)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := &config.Config{Vectorstore: config.VectorstoreConfig{Provider: "faiss"}}
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrRetrieval)
}
