// Package llm wraps the generative and embedding clients behind small
// interfaces so the pipeline components can be tested with deterministic
// fakes. Every external call carries a timeout and a bounded
// retry-with-backoff policy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"banking-rag/internal/config"
	"banking-rag/internal/models"
)

// ErrLLMCall marks a generation or embedding call that failed after
// exhausting its retry budget.
var ErrLLMCall = errors.New("llm call failed")

// Generator is the subset of langchaingo's model interface the pipeline
// needs. Both openai and ollama clients satisfy it.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client issues chat completions with per-call timeout and backoff.
type Client struct {
	gen         Generator
	timeout     time.Duration
	maxRetries  uint64
	temperature *float64
}

// New builds a Client from configuration.
func New(cfg config.LLMConfig) (*Client, error) {
	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(gen, cfg), nil
}

// NewWithGenerator wraps an existing generator; tests inject fakes here.
func NewWithGenerator(gen Generator, cfg config.LLMConfig) *Client {
	return &Client{
		gen:         gen,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries:  uint64(cfg.MaxRetries),
		temperature: cfg.Temperature,
	}
}

func newGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case "openai", "":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(os.Getenv(cfg.KeyEnv)),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Complete sends a system instruction, the prior conversation turns and the
// user message, returning the first choice's text.
func (c *Client) Complete(ctx context.Context, system string, history []models.Turn, user string) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))

	var opts []llms.CallOption
	if c.temperature != nil {
		opts = append(opts, llms.WithTemperature(*c.temperature))
	}

	var out string
	err := Do(ctx, c.timeout, c.maxRetries, func(callCtx context.Context) error {
		resp, err := c.gen.GenerateContent(callCtx, messages, opts...)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errors.New("empty response"))
		}
		out = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}
	return out, nil
}

// Do runs op under a fresh per-attempt timeout with bounded exponential
// backoff. A cancelled parent context stops the retries immediately.
func Do(ctx context.Context, timeout time.Duration, maxRetries uint64, op func(context.Context) error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := op(callCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Call failed, may retry")
		}
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(wrapped, policy)
}

// NewEmbedder builds the configured embedding client.
func NewEmbedder(cfg config.EmbeddingConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		client, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedder: %w", err)
		}
		return embeddings.NewEmbedder(client)
	case "openai", "":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(os.Getenv(cfg.KeyEnv)),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedder: %w", err)
		}
		return embeddings.NewEmbedder(client)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
