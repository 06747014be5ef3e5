//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Portions copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowrag/flowrag-server/internal/config"
	"github.com/flowrag/flowrag-server/internal/engine"
	"github.com/flowrag/flowrag-server/internal/ingest"
	"github.com/flowrag/flowrag-server/internal/llm/gateway"
	"github.com/flowrag/flowrag-server/internal/retrieval"
	"github.com/flowrag/flowrag-server/internal/server"
	"github.com/flowrag/flowrag-server/internal/store"
	"github.com/flowrag/flowrag-server/internal/vector"
	"github.com/flowrag/flowrag-server/internal/websearch"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-alpha1"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")
		configPath  = flag.String("config", "", "Path to configuration file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `FlowRAG Server - workflow-driven Retrieval-Augmented Generation

Usage:
    flowrag-server [options]

Options:
    -config string
        Path to configuration file. If not specified, searches:
        1. /etc/flowrag/flowrag-server.yaml
        2. flowrag-server.yaml (in binary directory)
        Built-in defaults are used when no file is found.

    -version
        Show version information and exit

    -help
        Show this help message and exit
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("FlowRAG Server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// A .env file is optional; API keys may come from the environment.
	_ = godotenv.Load()

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Run the server
	if err := run(*configPath, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	keys, err := config.NewAPIKeyLoader(cfg.APIKeys).LoadKeys()
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := store.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = store.EnsureSchema(ctx, pool)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	st := store.New(pool)

	creds := gateway.Credentials{
		OpenAIKey:     keys.OpenAI,
		GeminiKey:     keys.Gemini,
		AnthropicKey:  keys.Anthropic,
		OllamaBaseURL: cfg.Gateway.OllamaBaseURL,
	}

	gw := gateway.NewFromCredentials(creds,
		gateway.WithTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second),
		gateway.WithMaxRetries(cfg.Gateway.MaxRetries),
		gateway.WithLogger(logger))

	embedder, err := gateway.NewEmbeddingProvider(
		cfg.Embedding.Provider, cfg.Embedding.Model, creds)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	index := vector.NewPGIndex(pool)

	retriever := retrieval.NewService(embedder, index,
		retrieval.WithLogger(logger))

	pipeline := ingest.NewPipeline(embedder, index, st,
		ingest.WithChunker(ingest.NewChunker(
			cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)),
		ingest.WithLogger(logger))

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if keys.SerpAPI != "" {
		searchOpts := []websearch.ClientOption{
			websearch.WithTimeout(cfg.WebSearch.TimeoutSeconds),
		}
		if cfg.WebSearch.BaseURL != "" {
			searchOpts = append(searchOpts, websearch.WithBaseURL(cfg.WebSearch.BaseURL))
		}
		engineOpts = append(engineOpts,
			engine.WithWebSearcher(websearch.NewClient(keys.SerpAPI, searchOpts...)))
	} else {
		logger.Info("web search disabled: no SerpAPI key configured")
	}

	eng := engine.New(retriever, gw, engineOpts...)

	logger.Info("configuration loaded",
		"embedding_provider", cfg.Embedding.Provider,
		"web_search", keys.SerpAPI != "")

	// Create and start server
	srv := server.New(cfg, st, eng, pipeline, logger)

	// Handle graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal", "signal", sig)

		// Give 30 seconds for graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}
