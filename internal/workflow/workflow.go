// Package workflow sequences the answering pipeline as an explicit finite
// state machine: route, retrieve, grade, then generate, rewrite or fall
// back. The machine is driven by a bounded loop, never recursion, so it
// terminates regardless of what the external calls return.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"banking-rag/internal/config"
	"banking-rag/internal/fallback"
	"banking-rag/internal/generator"
	"banking-rag/internal/grader"
	"banking-rag/internal/models"
	"banking-rag/internal/registry"
	"banking-rag/internal/retriever"
	"banking-rag/internal/rewriter"
	"banking-rag/internal/router"
)

// ErrPipeline marks a service failure (index unavailable, exhausted LLM
// retries). It is surfaced to the caller and never conflated with a
// fallback answer, which is a normal result.
var ErrPipeline = errors.New("pipeline failure")

type node int

const (
	nodeRoute node = iota
	nodeRetrieve
	nodeGrade
	nodeRewrite
	nodeGenerate
	nodeFallback
	nodeAnswered
	nodeFallbackAnswered
)

func (n node) String() string {
	switch n {
	case nodeRoute:
		return "route"
	case nodeRetrieve:
		return "retrieve"
	case nodeGrade:
		return "grade"
	case nodeRewrite:
		return "rewrite"
	case nodeGenerate:
		return "generate"
	case nodeFallback:
		return "fallback"
	case nodeAnswered:
		return "answered"
	case nodeFallbackAnswered:
		return "fallback_answered"
	}
	return "unknown"
}

// minRelevantChunks is the sufficiency bar: grading must accumulate at
// least this many relevant chunks before generation.
const minRelevantChunks = 1

// State is owned by exactly one Answer execution and mutated only by its
// transitions.
type State struct {
	OriginalQuery   string
	History         []models.Turn
	CurrentQuery    string
	PendingVariants []string
	Datasource      *config.Datasource
	Unknown         bool
	Candidates      []models.RetrievalCandidate
	Relevant        []models.DocumentChunk
	Attempts        int
	Result          models.Result

	seen map[string]bool
}

type Pipeline struct {
	registry    *registry.Registry
	router      *router.Router
	retriever   *retriever.Retriever
	grader      *grader.Grader
	rewriter    *rewriter.Rewriter
	generator   *generator.Generator
	fallback    *fallback.Handler
	maxRewrites int
}

func New(
	reg *registry.Registry,
	rt *router.Router,
	rv *retriever.Retriever,
	gd *grader.Grader,
	rw *rewriter.Rewriter,
	gen *generator.Generator,
	fb *fallback.Handler,
	maxRewrites int,
) *Pipeline {
	return &Pipeline{
		registry:    reg,
		router:      rt,
		retriever:   rv,
		grader:      gd,
		rewriter:    rw,
		generator:   gen,
		fallback:    fb,
		maxRewrites: maxRewrites,
	}
}

// Answer runs one query through the pipeline. Fallback outcomes are normal
// results; ErrPipeline-wrapped errors are service failures the caller must
// present differently.
func (p *Pipeline) Answer(ctx context.Context, query string, history []models.Turn) (models.Result, error) {
	logger := log.With().Str("execution", uuid.NewString()).Logger()

	st := &State{
		OriginalQuery: query,
		History:       history,
		seen:          make(map[string]bool),
	}

	// Each rewrite round rewrites once then retrieves and grades up to 3
	// variants; the cap leaves one extra round of slack.
	maxSteps := 3 + (p.maxRewrites+2)*7

	current := nodeRoute
	for steps := 0; steps < maxSteps; steps++ {
		logger.Debug().Stringer("state", current).Int("attempts", st.Attempts).Msg("Transition")

		next, err := p.step(ctx, current, st, logger)
		if err != nil {
			return models.Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
		}
		if next == nodeAnswered || next == nodeFallbackAnswered {
			logger.Info().Stringer("terminal", next).Int("attempts", st.Result.Attempts).Msg("Pipeline finished")
			return st.Result, nil
		}
		current = next
	}
	return models.Result{}, fmt.Errorf("%w: state machine exceeded %d steps", ErrPipeline, maxSteps)
}

// step maps (current node, state) to the next node, mutating only st.
func (p *Pipeline) step(ctx context.Context, current node, st *State, logger zerolog.Logger) (node, error) {
	switch current {
	case nodeRoute:
		decision, err := p.router.Route(ctx, st.OriginalQuery, st.History)
		if err != nil {
			return 0, err
		}
		if decision.Unknown {
			st.Unknown = true
			return nodeFallback, nil
		}
		ds, err := p.registry.Get(decision.DatasourceID)
		if err != nil {
			return 0, err
		}
		st.Datasource = ds
		st.CurrentQuery = st.OriginalQuery
		return nodeRetrieve, nil

	case nodeRetrieve:
		candidates, err := p.retriever.Retrieve(ctx, st.Datasource, st.CurrentQuery)
		if err != nil {
			return 0, err
		}
		st.Candidates = candidates
		return nodeGrade, nil

	case nodeGrade:
		graded, err := p.grader.Grade(ctx, st.CurrentQuery, st.Candidates)
		if err != nil {
			return 0, err
		}
		for _, chunk := range grader.Relevant(graded) {
			if st.seen[chunk.ChunkID] {
				continue
			}
			st.seen[chunk.ChunkID] = true
			st.Relevant = append(st.Relevant, chunk)
		}
		if len(st.Relevant) >= minRelevantChunks {
			return nodeGenerate, nil
		}
		if len(st.PendingVariants) > 0 {
			st.CurrentQuery = st.PendingVariants[0]
			st.PendingVariants = st.PendingVariants[1:]
			return nodeRetrieve, nil
		}
		if st.Attempts < p.maxRewrites {
			return nodeRewrite, nil
		}
		return nodeFallback, nil

	case nodeRewrite:
		st.Attempts++
		variants, err := p.rewriter.Rewrite(ctx, st.OriginalQuery)
		if err != nil {
			return 0, err
		}
		st.CurrentQuery = variants[0]
		st.PendingVariants = variants[1:]
		logger.Debug().Int("round", st.Attempts).Int("variants", len(variants)).Msg("Rewrite round")
		return nodeRetrieve, nil

	case nodeGenerate:
		answer, err := p.generator.Generate(ctx, st.Datasource, st.OriginalQuery, st.History, st.Relevant)
		if err != nil {
			return 0, err
		}
		id := st.Datasource.ID
		st.Result = models.Result{Answer: answer, DatasourceUsed: &id, Attempts: st.Attempts}
		return nodeAnswered, nil

	case nodeFallback:
		answer := p.fallback.Respond(ctx, st.OriginalQuery, st.History)
		var used *string
		if st.Datasource != nil {
			id := st.Datasource.ID
			used = &id
		}
		st.Result = models.Result{Answer: answer, DatasourceUsed: used, Attempts: st.Attempts}
		return nodeFallbackAnswered, nil
	}
	return 0, fmt.Errorf("no transition from state %s", current)
}
