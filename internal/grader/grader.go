// Package grader binary-classifies retrieved chunks as relevant or not.
// The configured instruction sets a deliberately low bar: only clearly
// irrelevant chunks should be excluded.
package grader

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"banking-rag/internal/llm"
	"banking-rag/internal/models"
)

type Grader struct {
	client *llm.Client
	prompt string
}

func New(client *llm.Client, graderPrompt string) *Grader {
	return &Grader{client: client, prompt: graderPrompt}
}

// Grade issues one yes/no judgment per candidate, preserving retrieval
// order in the output. An empty candidate list returns immediately without
// any classification call.
func (g *Grader) Grade(ctx context.Context, query string, candidates []models.RetrievalCandidate) ([]models.GradedChunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	graded := make([]models.GradedChunk, 0, len(candidates))
	for _, cand := range candidates {
		if strings.TrimSpace(cand.Chunk.Text) == "" {
			graded = append(graded, models.GradedChunk{Chunk: cand.Chunk, Relevant: false})
			continue
		}
		user := fmt.Sprintf("Retrieved document:\n\n%s\n\nUser question: %s", cand.Chunk.Text, query)
		raw, err := g.client.Complete(ctx, g.prompt, nil, user)
		if err != nil {
			return nil, err
		}
		relevant := parseVerdict(raw)
		log.Debug().Str("chunk", cand.Chunk.ChunkID).Bool("relevant", relevant).Msg("Graded chunk")
		graded = append(graded, models.GradedChunk{Chunk: cand.Chunk, Relevant: relevant})
	}
	return graded, nil
}

// parseVerdict accepts only an answer that starts with "yes" after
// trimming; everything else, including unparseable output, counts as not
// relevant.
func parseVerdict(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "`'\".")
	return s == "yes" || strings.HasPrefix(s, "yes")
}

// Relevant filters a graded sequence down to the relevant chunks, keeping
// order.
func Relevant(graded []models.GradedChunk) []models.DocumentChunk {
	var out []models.DocumentChunk
	for _, g := range graded {
		if g.Relevant {
			out = append(out, g.Chunk)
		}
	}
	return out
}
