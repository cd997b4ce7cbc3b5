package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	one := 1
	return &Config{
		Datasources: []Datasource{
			{
				ID:          "cartao_credito",
				DisplayName: "Cartão de Crédito",
				Folders:     []string{"cartao_credito"},
				PromptTemplates: PromptTemplates{
					RAGPrompt: "Contexto: {{.context}}\nPergunta: {{.question}}",
				},
				RetrieverConfig: RetrieverConfig{
					SearchType: "mmr",
					TopK:       3,
					FetchK:     10,
					LambdaMult: 0.5,
				},
			},
		},
		GlobalPrompts: GlobalPrompts{
			RouterPrompt:       "router",
			GraderPrompt:       "grader",
			FallbackPrompt:     "fallback",
			RewriteQueryPrompt: "rewrite",
		},
		Embedding:    EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimension: 768},
		Vectorstore:  VectorstoreConfig{Provider: "chromem", PersistDirectory: "/tmp/x"},
		LLM:          LLMConfig{Model: "gpt-4o-mini", TimeoutSeconds: 30, MaxRetries: 2},
		TextSplitter: TextSplitterConfig{ChunkSize: 1000, ChunkOverlap: 100},
		MaxRewrites:  &one,
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no datasources", func(c *Config) { c.Datasources = nil }},
		{"empty id", func(c *Config) { c.Datasources[0].ID = "" }},
		{"duplicate id", func(c *Config) {
			c.Datasources = append(c.Datasources, c.Datasources[0])
		}},
		{"no folders", func(c *Config) { c.Datasources[0].Folders = nil }},
		{"missing rag_prompt", func(c *Config) { c.Datasources[0].PromptTemplates.RAGPrompt = " " }},
		{"missing context placeholder", func(c *Config) {
			c.Datasources[0].PromptTemplates.RAGPrompt = "Pergunta: {{.question}}"
		}},
		{"top_k zero", func(c *Config) { c.Datasources[0].RetrieverConfig.TopK = 0 }},
		{"top_k above fetch_k", func(c *Config) { c.Datasources[0].RetrieverConfig.TopK = 20 }},
		{"lambda below range", func(c *Config) { c.Datasources[0].RetrieverConfig.LambdaMult = -0.1 }},
		{"lambda above range", func(c *Config) { c.Datasources[0].RetrieverConfig.LambdaMult = 1.5 }},
		{"unknown search type", func(c *Config) { c.Datasources[0].RetrieverConfig.SearchType = "hybrid" }},
		{"empty router prompt", func(c *Config) { c.GlobalPrompts.RouterPrompt = "" }},
		{"chunk size zero", func(c *Config) { c.TextSplitter.ChunkSize = 0 }},
		{"overlap not below size", func(c *Config) { c.TextSplitter.ChunkOverlap = 1000 }},
		{"missing max_rewrites", func(c *Config) { c.MaxRewrites = nil }},
		{"negative max_rewrites", func(c *Config) { n := -1; c.MaxRewrites = &n }},
		{"unknown vectorstore provider", func(c *Config) { c.Vectorstore.Provider = "faiss" }},
		{"chromem without persist dir", func(c *Config) { c.Vectorstore.PersistDirectory = "" }},
		{"pgvector without dsn", func(c *Config) {
			c.Vectorstore.Provider = "pgvector"
			c.Vectorstore.PostgresDSN = ""
		}},
		{"missing llm model", func(c *Config) { c.LLM.Model = "" }},
		{"missing embedding model", func(c *Config) { c.Embedding.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
max_rewrites: 1
datasources:
  - id: conta_corrente
    display_name: Conta Corrente
    folders: [conta_corrente]
    prompt_templates:
      rag_prompt: "Contexto: {{.context}} Pergunta: {{.question}}"
    retriever_config:
      top_k: 3
      fetch_k: 8
      lambda_mult: 0.7
global_prompts:
  router_prompt: r
  grader_prompt: g
  fallback_prompt: f
  rewrite_query_prompt: w
embedding_config:
  provider: ollama
  model: nomic-embed-text
vectorstore_config:
  provider: chromem
  persist_directory: ./chromemdb
llm_config:
  model: gpt-4o-mini
text_splitter:
  chunk_size: 500
  chunk_overlap: 50
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, *cfg.MaxRewrites)
	assert.Equal(t, "conta_corrente", cfg.Datasources[0].ID)
	// Defaults applied.
	assert.Equal(t, "mmr", cfg.Datasources[0].RetrieverConfig.SearchType)
	assert.Equal(t, defaultTimeoutSeconds, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, defaultMaxRetries, cfg.LLM.MaxRetries)
	assert.Equal(t, defaultDimension, cfg.Embedding.Dimension)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadRejectsInvalidWithoutPartialResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasources: []\n"), 0o644))

	cfg, err := Load(path)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Nil(t, cfg)
}
