package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"banking-rag/internal/config"
	"banking-rag/internal/fallback"
	"banking-rag/internal/generator"
	"banking-rag/internal/grader"
	"banking-rag/internal/ingest"
	"banking-rag/internal/llm"
	"banking-rag/internal/models"
	"banking-rag/internal/registry"
	"banking-rag/internal/retriever"
	"banking-rag/internal/rewriter"
	"banking-rag/internal/router"
	"banking-rag/internal/splitter"
	"banking-rag/internal/vectorstore"
	"banking-rag/internal/workflow"
)

const serviceErrorMessage = "Desculpe, estamos com uma instabilidade no momento. Por favor, tente novamente em instantes."

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	configPath := flag.String("config", "./configs/config.yaml", "Path to the configuration file")
	docsDir := flag.String("docs", "./docs", "Base directory for the configured document folders")
	doIngest := flag.Bool("ingest", false, "Build the vector indexes from the document folders")
	reindex := flag.Bool("reindex", false, "Force a full rebuild of the vector indexes")
	query := flag.String("query", "", "Question to answer")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Int("datasources", len(cfg.Datasources)).Msg("Loaded config")

	reg := registry.New(cfg)

	embedder, err := llm.NewEmbedder(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	store, err := vectorstore.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}

	ctx := context.Background()

	if *doIngest || *reindex {
		builder := ingest.NewBuilder(reg, splitter.New(cfg.TextSplitter), embedder, store, *docsDir, cfg.LLM)
		if err := builder.BuildAll(ctx, *reindex); err != nil {
			log.Fatal().Err(err).Msg("Error building indexes")
		}
		log.Info().Msg("Ingestion complete")
		if *query == "" {
			return
		}
	}

	if *query == "" {
		log.Fatal().Msg("Please provide a question using the -query flag, or run with -ingest")
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	pipeline := workflow.New(
		reg,
		router.New(client, reg, cfg.GlobalPrompts),
		retriever.New(store, embedder, cfg.LLM),
		grader.New(client, cfg.GlobalPrompts.GraderPrompt),
		rewriter.New(client, cfg.GlobalPrompts.RewriteQueryPrompt),
		generator.New(client),
		fallback.New(client, cfg.GlobalPrompts.FallbackPrompt),
		*cfg.MaxRewrites,
	)

	result, err := pipeline.Answer(ctx, *query, nil)
	if err != nil {
		// Service failure, not an evidence problem. The user sees a generic
		// error message, never a fabricated answer.
		if errors.Is(err, workflow.ErrPipeline) {
			log.Error().Err(err).Msg("Pipeline failure")
			fmt.Println(serviceErrorMessage)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Error answering")
	}

	printResult(*query, result)
}

func printResult(query string, result models.Result) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Datasource: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	if result.DatasourceUsed != nil {
		fmt.Printf("%s (attempts: %d)\n\n", *result.DatasourceUsed, result.Attempts)
	} else {
		fmt.Printf("none (attempts: %d)\n\n", result.Attempts)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", result.Answer)
}
