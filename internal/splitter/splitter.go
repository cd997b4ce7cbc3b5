package splitter

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

// Splitter cuts raw documents into overlapping chunks. Sizes are measured
// in characters. Splitting is deterministic: the same document with the
// same (chunk_size, chunk_overlap) always yields identical chunks.
type Splitter struct {
	inner        textsplitter.RecursiveCharacter
	chunkSize    int
	chunkOverlap int
}

func New(cfg config.TextSplitterConfig) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// Split produces the ordered chunk sequence for one document. Chunk ids
// are derived from (datasource, document, position) and survive
// re-ingestion of identical input unchanged.
func (s *Splitter) Split(datasourceID string, doc models.RawDocument) ([]models.DocumentChunk, error) {
	parts, err := s.inner.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", doc.DocumentID, err)
	}

	chunks := make([]models.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.DocumentChunk{
			ChunkID:      fmt.Sprintf("%s/%s#%d", datasourceID, doc.DocumentID, i),
			DatasourceID: datasourceID,
			Text:         part,
			Metadata: map[string]string{
				"document_id": doc.DocumentID,
				"position":    fmt.Sprintf("%d", i),
			},
		})
	}
	return chunks, nil
}
