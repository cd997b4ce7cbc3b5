// Package router classifies a query into exactly one known datasource.
package router

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"banking-rag/internal/config"
	"banking-rag/internal/llm"
	"banking-rag/internal/models"
	"banking-rag/internal/registry"
)

// Decision is the routing outcome. Unknown is a normal outcome, not an
// error; it sends the query straight to the fallback handler.
type Decision struct {
	DatasourceID string
	Unknown      bool
}

type Router struct {
	client   *llm.Client
	registry *registry.Registry
	prompt   string
}

const descriptionsPlaceholder = "{datasource_descriptions}"

func New(client *llm.Client, reg *registry.Registry, prompts config.GlobalPrompts) *Router {
	prompt := prompts.RouterPrompt
	if strings.Contains(prompt, descriptionsPlaceholder) {
		prompt = strings.ReplaceAll(prompt, descriptionsPlaceholder, reg.Describe())
	} else {
		prompt += "\n\nAvailable datasources:\n" + reg.Describe()
	}
	return &Router{client: client, registry: reg, prompt: prompt}
}

// Route asks the model for a datasource id and parses the answer against
// the closed set of known ids. Anything that is not an exact match maps to
// Unknown; the output is never guessed or fuzzy-matched.
func (r *Router) Route(ctx context.Context, query string, history []models.Turn) (Decision, error) {
	raw, err := r.client.Complete(ctx, r.prompt, history, query)
	if err != nil {
		return Decision{}, err
	}

	id := normalize(raw)
	if r.registry.Has(id) {
		log.Debug().Str("datasource", id).Msg("Query routed")
		return Decision{DatasourceID: id}, nil
	}
	log.Debug().Str("raw", raw).Msg("Router output matched no datasource")
	return Decision{Unknown: true}, nil
}

// normalize strips the decoration models wrap single-token answers in:
// whitespace, quotes, backticks and a trailing period.
func normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`'\"")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
