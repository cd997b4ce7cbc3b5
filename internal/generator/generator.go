// Package generator synthesizes the final answer from the accumulated
// relevant chunks and the datasource's prompt template. The template
// instructs the model to answer strictly from the supplied context.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"banking-rag/internal/config"
	"banking-rag/internal/llm"
	"banking-rag/internal/models"
)

type Generator struct {
	client *llm.Client
}

func New(client *llm.Client) *Generator {
	return &Generator{client: client}
}

// Generate renders the datasource's rag_prompt with the deduplicated chunk
// texts and the original question, then asks the model for the grounded
// answer.
func (g *Generator) Generate(ctx context.Context, ds *config.Datasource, query string, history []models.Turn, chunks []models.DocumentChunk) (string, error) {
	tmpl := prompts.NewPromptTemplate(ds.PromptTemplates.RAGPrompt, []string{"context", "question"})
	system, err := tmpl.Format(map[string]any{
		"context":  joinChunks(dedupe(chunks)),
		"question": query,
	})
	if err != nil {
		return "", fmt.Errorf("rendering rag_prompt for %s: %w", ds.ID, err)
	}
	return g.client.Complete(ctx, system, history, query)
}

// dedupe drops repeated chunk ids, keeping first occurrence order. The
// same chunk can be accumulated by several retrieval rounds.
func dedupe(chunks []models.DocumentChunk) []models.DocumentChunk {
	seen := make(map[string]bool, len(chunks))
	var out []models.DocumentChunk
	for _, c := range chunks {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c)
	}
	return out
}

func joinChunks(chunks []models.DocumentChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
