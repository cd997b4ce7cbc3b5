package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

func TestSplitIsDeterministic(t *testing.T) {
	cfg := config.TextSplitterConfig{ChunkSize: 120, ChunkOverlap: 20}
	doc := models.RawDocument{
		DocumentID: "limites.txt",
		Text: strings.Repeat("O limite do cartão platinum é definido na contratação e pode ser revisto a cada seis meses. ", 20),
	}

	first, err := New(cfg).Split("cartao_credito", doc)
	require.NoError(t, err)
	second, err := New(cfg).Split("cartao_credito", doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestSplitChunkIDs(t *testing.T) {
	cfg := config.TextSplitterConfig{ChunkSize: 50, ChunkOverlap: 5}
	doc := models.RawDocument{
		DocumentID: "tarifas.txt",
		Text:       strings.Repeat("A tarifa de manutenção da conta corrente padrão. ", 10),
	}

	chunks, err := New(cfg).Split("conta_corrente", doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, "conta_corrente/tarifas.txt#0", chunks[0].ChunkID)
	seen := make(map[string]bool)
	for i, c := range chunks {
		assert.False(t, seen[c.ChunkID], "duplicate chunk id %s", c.ChunkID)
		seen[c.ChunkID] = true
		assert.Equal(t, "conta_corrente", c.DatasourceID)
		assert.Equal(t, "tarifas.txt", c.Metadata["document_id"])
		if i > 0 {
			assert.NotEqual(t, chunks[i-1].ChunkID, c.ChunkID)
		}
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	cfg := config.TextSplitterConfig{ChunkSize: 1000, ChunkOverlap: 100}
	doc := models.RawDocument{DocumentID: "pix.txt", Text: "Pix não tem tarifa para pessoa física."}

	chunks, err := New(cfg).Split("conta_corrente", doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Text, chunks[0].Text)
}
