package models

// RawDocument is one source document as yielded by the loader, before
// splitting.
type RawDocument struct {
	DocumentID string
	Text       string
}

// DocumentChunk is the unit of indexing and retrieval. Immutable once
// indexed; re-ingestion replaces chunks, never mutates them in place.
type DocumentChunk struct {
	ChunkID      string
	DatasourceID string
	Text         string
	Embedding    []float32
	Metadata     map[string]string
}

// RetrievalCandidate pairs a chunk with its similarity to the query
// embedding. Produced transiently by the vector store.
type RetrievalCandidate struct {
	Chunk      DocumentChunk
	Similarity float32
}

// GradedChunk is the grader's per-chunk verdict.
type GradedChunk struct {
	Chunk    DocumentChunk
	Relevant bool
}

// Turn is one prior message of the conversation. Role is "user" or
// "assistant".
type Turn struct {
	Role    string
	Content string
}

// Result is the pipeline's terminal answer. DatasourceUsed is nil when
// routing produced no datasource (fallback on an out-of-domain query).
type Result struct {
	Answer         string
	DatasourceUsed *string
	Attempts       int
}
