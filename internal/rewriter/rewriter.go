// Package rewriter proposes alternative phrasings when retrieval found no
// usable evidence. Rewrites always start from the original query, never
// from a prior rewrite, so repeated rounds cannot drift.
package rewriter

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"banking-rag/internal/llm"
)

// maxVariants caps how many rewrites one round may return.
const maxVariants = 3

type Rewriter struct {
	client *llm.Client
	prompt string
}

func New(client *llm.Client, rewritePrompt string) *Rewriter {
	return &Rewriter{client: client, prompt: rewritePrompt}
}

// Rewrite returns 1 to 3 alternative phrasings of originalQuery.
func (r *Rewriter) Rewrite(ctx context.Context, originalQuery string) ([]string, error) {
	raw, err := r.client.Complete(ctx, r.prompt, nil, originalQuery)
	if err != nil {
		return nil, err
	}

	variants := parseVariants(raw)
	if len(variants) == 0 {
		// Unparseable output still yields one usable variant.
		variants = []string{strings.TrimSpace(raw)}
	}
	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	log.Debug().Strs("variants", variants).Msg("Rewrote query")
	return variants, nil
}

// parseVariants extracts entries from a numbered or bulleted list.
func parseVariants(raw string) []string {
	var variants []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var query string
		switch {
		case strings.HasPrefix(line, "- "):
			query = strings.TrimSpace(line[2:])
		case unicode.IsDigit(rune(line[0])):
			if _, rest, found := strings.Cut(line, "."); found {
				query = strings.TrimSpace(rest)
			}
		}
		if query != "" {
			variants = append(variants, query)
		}
	}
	return variants
}
