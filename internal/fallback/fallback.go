// Package fallback produces the safe non-answer used when routing finds no
// datasource or the rewrite budget is exhausted without evidence.
package fallback

import (
	"context"

	"github.com/rs/zerolog/log"

	"banking-rag/internal/llm"
	"banking-rag/internal/models"
)

// staticApology is used when even the fallback generation call fails; the
// handler itself never fails.
const staticApology = "Desculpe, não encontrei informações específicas sobre isso na base de conhecimento. Posso ajudar com outra dúvida sobre os nossos produtos e serviços?"

type Handler struct {
	client *llm.Client
	prompt string
}

func New(client *llm.Client, fallbackPrompt string) *Handler {
	return &Handler{client: client, prompt: fallbackPrompt}
}

// Respond generates a polite message stating that the knowledge base had
// no specific answer. It always succeeds.
func (h *Handler) Respond(ctx context.Context, query string, history []models.Turn) string {
	answer, err := h.client.Complete(ctx, h.prompt, history, query)
	if err != nil {
		log.Warn().Err(err).Msg("Fallback generation failed, using static message")
		return staticApology
	}
	return answer
}
