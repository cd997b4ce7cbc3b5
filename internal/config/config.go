package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks any configuration problem detected at load time. The
// config is rejected as a whole; there is no partial load.
var ErrConfig = errors.New("invalid configuration")

type RetrieverConfig struct {
	SearchType string  `yaml:"search_type"`
	TopK       int     `yaml:"top_k"`
	FetchK     int     `yaml:"fetch_k"`
	LambdaMult float64 `yaml:"lambda_mult"`
}

type PromptTemplates struct {
	RAGPrompt string `yaml:"rag_prompt"`
}

type Datasource struct {
	ID              string          `yaml:"id"`
	DisplayName     string          `yaml:"display_name"`
	Description     string          `yaml:"description"`
	Folders         []string        `yaml:"folders"`
	PromptTemplates PromptTemplates `yaml:"prompt_templates"`
	RetrieverConfig RetrieverConfig `yaml:"retriever_config"`
}

type GlobalPrompts struct {
	RouterPrompt       string `yaml:"router_prompt"`
	GraderPrompt       string `yaml:"grader_prompt"`
	FallbackPrompt     string `yaml:"fallback_prompt"`
	RewriteQueryPrompt string `yaml:"rewrite_query_prompt"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	KeyEnv    string `yaml:"key_env"`
	Dimension int    `yaml:"dimension"`
}

type VectorstoreConfig struct {
	Provider         string `yaml:"provider"`
	PersistDirectory string `yaml:"persist_directory"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	Debug            bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	BaseURL        string   `yaml:"base_url"`
	KeyEnv         string   `yaml:"key_env"`
	Temperature    *float64 `yaml:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxRetries     int      `yaml:"max_retries"`
}

type TextSplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type Config struct {
	Datasources   []Datasource       `yaml:"datasources"`
	GlobalPrompts GlobalPrompts      `yaml:"global_prompts"`
	Embedding     EmbeddingConfig    `yaml:"embedding_config"`
	Vectorstore   VectorstoreConfig  `yaml:"vectorstore_config"`
	LLM           LLMConfig          `yaml:"llm_config"`
	TextSplitter  TextSplitterConfig `yaml:"text_splitter"`
	// MaxRewrites bounds the query-rewrite rounds of a pipeline run. It is
	// required configuration so the workflow can never loop unboundedly.
	MaxRewrites *int `yaml:"max_rewrites"`
}

const (
	defaultTimeoutSeconds = 60
	defaultMaxRetries     = 3
	defaultDimension      = 768
)

// Load reads, parses and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = defaultMaxRetries
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = defaultDimension
	}
	for i := range c.Datasources {
		rc := &c.Datasources[i].RetrieverConfig
		if rc.SearchType == "" {
			rc.SearchType = "mmr"
		}
		if rc.FetchK == 0 {
			rc.FetchK = rc.TopK
		}
	}
}

// Validate checks every invariant the pipeline relies on. It returns the
// first violation found, wrapped in ErrConfig.
func (c *Config) Validate() error {
	if len(c.Datasources) == 0 {
		return fmt.Errorf("%w: no datasources defined", ErrConfig)
	}
	seen := make(map[string]bool, len(c.Datasources))
	for _, ds := range c.Datasources {
		if ds.ID == "" {
			return fmt.Errorf("%w: datasource with empty id", ErrConfig)
		}
		if seen[ds.ID] {
			return fmt.Errorf("%w: duplicate datasource id %q", ErrConfig, ds.ID)
		}
		seen[ds.ID] = true
		if len(ds.Folders) == 0 {
			return fmt.Errorf("%w: datasource %q has no folders", ErrConfig, ds.ID)
		}
		if strings.TrimSpace(ds.PromptTemplates.RAGPrompt) == "" {
			return fmt.Errorf("%w: datasource %q missing rag_prompt", ErrConfig, ds.ID)
		}
		for _, ph := range []string{"{{.context}}", "{{.question}}"} {
			if !strings.Contains(ds.PromptTemplates.RAGPrompt, ph) {
				return fmt.Errorf("%w: datasource %q rag_prompt missing %s placeholder", ErrConfig, ds.ID, ph)
			}
		}
		rc := ds.RetrieverConfig
		if rc.TopK <= 0 {
			return fmt.Errorf("%w: datasource %q top_k must be positive", ErrConfig, ds.ID)
		}
		if rc.TopK > rc.FetchK {
			return fmt.Errorf("%w: datasource %q top_k %d exceeds fetch_k %d", ErrConfig, ds.ID, rc.TopK, rc.FetchK)
		}
		if rc.LambdaMult < 0 || rc.LambdaMult > 1 {
			return fmt.Errorf("%w: datasource %q lambda_mult %v outside [0,1]", ErrConfig, ds.ID, rc.LambdaMult)
		}
		if rc.SearchType != "mmr" && rc.SearchType != "similarity" {
			return fmt.Errorf("%w: datasource %q unknown search_type %q", ErrConfig, ds.ID, rc.SearchType)
		}
	}
	for name, p := range map[string]string{
		"router_prompt":        c.GlobalPrompts.RouterPrompt,
		"grader_prompt":        c.GlobalPrompts.GraderPrompt,
		"fallback_prompt":      c.GlobalPrompts.FallbackPrompt,
		"rewrite_query_prompt": c.GlobalPrompts.RewriteQueryPrompt,
	} {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: global prompt %s is empty", ErrConfig, name)
		}
	}
	if c.TextSplitter.ChunkSize <= 0 {
		return fmt.Errorf("%w: text_splitter chunk_size must be positive", ErrConfig)
	}
	if c.TextSplitter.ChunkOverlap < 0 || c.TextSplitter.ChunkOverlap >= c.TextSplitter.ChunkSize {
		return fmt.Errorf("%w: text_splitter chunk_overlap %d must be in [0, chunk_size)", ErrConfig, c.TextSplitter.ChunkOverlap)
	}
	if c.MaxRewrites == nil {
		return fmt.Errorf("%w: max_rewrites is required", ErrConfig)
	}
	if *c.MaxRewrites < 0 {
		return fmt.Errorf("%w: max_rewrites must be >= 0", ErrConfig)
	}
	switch c.Vectorstore.Provider {
	case "chromem":
		if c.Vectorstore.PersistDirectory == "" {
			return fmt.Errorf("%w: vectorstore persist_directory is required for chromem", ErrConfig)
		}
	case "pgvector":
		if c.Vectorstore.PostgresDSN == "" {
			return fmt.Errorf("%w: vectorstore postgres_dsn is required for pgvector", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown vectorstore provider %q", ErrConfig, c.Vectorstore.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm_config model is required", ErrConfig)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding_config model is required", ErrConfig)
	}
	return nil
}
