package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"banking-rag/internal/config"
	"banking-rag/internal/llm"
	"banking-rag/internal/registry"
)

type cannedGen struct {
	reply  string
	err    error
	system string
}

func (g *cannedGen) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
		g.system = text.Text
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: g.reply}}}, nil
}

func newTestRouter(gen llm.Generator) *Router {
	cfg := &config.Config{
		Datasources: []config.Datasource{
			{ID: "cartao_credito", Description: "Cartões de crédito."},
			{ID: "conta_corrente", Description: "Conta corrente."},
		},
	}
	client := llm.NewWithGenerator(gen, config.LLMConfig{TimeoutSeconds: 5, MaxRetries: 0})
	return New(client, registry.New(cfg), config.GlobalPrompts{RouterPrompt: "Escolha a base."})
}

func TestRouteKnownDatasource(t *testing.T) {
	r := newTestRouter(&cannedGen{reply: "cartao_credito"})

	d, err := r.Route(context.Background(), "qual o limite do platinum?", nil)
	require.NoError(t, err)
	assert.False(t, d.Unknown)
	assert.Equal(t, "cartao_credito", d.DatasourceID)
}

func TestRouteStripsDecoration(t *testing.T) {
	for _, reply := range []string{" cartao_credito ", "'cartao_credito'", "`cartao_credito`", "cartao_credito."} {
		r := newTestRouter(&cannedGen{reply: reply})
		d, err := r.Route(context.Background(), "limite", nil)
		require.NoError(t, err)
		assert.False(t, d.Unknown, "reply %q", reply)
		assert.Equal(t, "cartao_credito", d.DatasourceID)
	}
}

func TestRouteUnknownIsNeverGuessed(t *testing.T) {
	for _, reply := range []string{"UNKNOWN", "cartao", "cartao_credito ou conta_corrente", "a capital da França é Paris", ""} {
		r := newTestRouter(&cannedGen{reply: reply})
		d, err := r.Route(context.Background(), "qual a capital da França?", nil)
		require.NoError(t, err)
		assert.True(t, d.Unknown, "reply %q should map to unknown", reply)
		assert.Empty(t, d.DatasourceID)
	}
}

func TestRoutePromptCarriesDatasourceDescriptions(t *testing.T) {
	gen := &cannedGen{reply: "conta_corrente"}
	r := newTestRouter(gen)

	_, err := r.Route(context.Background(), "tarifas", nil)
	require.NoError(t, err)
	assert.Contains(t, gen.system, "'cartao_credito': Cartões de crédito.")
	assert.Contains(t, gen.system, "'conta_corrente': Conta corrente.")
}

func TestRouteLLMFailurePropagates(t *testing.T) {
	r := newTestRouter(&cannedGen{err: errors.New("boom")})

	_, err := r.Route(context.Background(), "limite", nil)
	assert.ErrorIs(t, err, llm.ErrLLMCall)
}
