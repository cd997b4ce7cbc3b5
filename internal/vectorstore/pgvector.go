package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

type pgChunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ChunkID       string    `bun:"chunk_id,pk"`
	DatasourceID  string    `bun:"datasource_id,notnull"`
	Text          string    `bun:"text,notnull"`
	Embedding     []float32 `bun:"embedding,notnull"`
	Similarity    float64   `bun:"similarity,scanonly"`
}

// PgvectorStore backs the embedding indexes with a postgres table and the
// pgvector extension, all datasources sharing one table keyed by
// datasource_id.
type PgvectorStore struct {
	db     *bun.DB
	writes *lockMap
}

func NewPgvectorStore(cfg config.VectorstoreConfig, dimension int) (*PgvectorStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("%w: enabling pgvector: %v", ErrRetrieval, err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id text PRIMARY KEY,
		datasource_id text NOT NULL,
		text text NOT NULL,
		embedding vector(%d) NOT NULL
	)`, dimension)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("%w: creating chunks table: %v", ErrRetrieval, err)
	}
	return &PgvectorStore{db: db, writes: newLockMap()}, nil
}

func (s *PgvectorStore) Add(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	mu := s.writes.get(datasourceID)
	mu.Lock()
	defer mu.Unlock()

	rows := make([]pgChunk, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, pgChunk{
			ChunkID:      c.ChunkID,
			DatasourceID: datasourceID,
			Text:         c.Text,
			Embedding:    c.Embedding,
		})
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("text = EXCLUDED.text").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: inserting chunks for %s: %v", ErrRetrieval, datasourceID, err)
	}
	return nil
}

func (s *PgvectorStore) Search(ctx context.Context, datasourceID string, queryEmbedding []float32, fetchK int) ([]models.RetrievalCandidate, error) {
	var rows []pgChunk
	err := s.db.NewSelect().
		Model(&rows).
		Column("chunk_id", "datasource_id", "text", "embedding").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", queryEmbedding).
		Where("datasource_id = ?", datasourceID).
		OrderExpr("embedding <=> ?", queryEmbedding).
		Limit(fetchK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %v", ErrRetrieval, datasourceID, err)
	}

	candidates := make([]models.RetrievalCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, models.RetrievalCandidate{
			Chunk: models.DocumentChunk{
				ChunkID:      row.ChunkID,
				DatasourceID: row.DatasourceID,
				Text:         row.Text,
				Embedding:    row.Embedding,
			},
			Similarity: float32(row.Similarity),
		})
	}
	return candidates, nil
}

func (s *PgvectorStore) Rebuild(ctx context.Context, datasourceID string, chunks []models.DocumentChunk) error {
	mu := s.writes.get(datasourceID)
	mu.Lock()
	_, err := s.db.NewDelete().
		Model((*pgChunk)(nil)).
		Where("datasource_id = ?", datasourceID).
		Exec(ctx)
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: clearing %s: %v", ErrRetrieval, datasourceID, err)
	}
	return s.Add(ctx, datasourceID, chunks)
}

func (s *PgvectorStore) Count(ctx context.Context, datasourceID string) (int, error) {
	count, err := s.db.NewSelect().
		Model((*pgChunk)(nil)).
		Where("datasource_id = ?", datasourceID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", ErrRetrieval, datasourceID, err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (s *PgvectorStore) Close() error {
	return s.db.Close()
}
