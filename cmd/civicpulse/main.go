// CivicPulse analytics backend — serves the SSE chat pipeline, cluster
// prediction, analytics visits, report generation, and voice endpoints.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/civicpulse/civicpulse/pkg/agent"
	"github.com/civicpulse/civicpulse/pkg/api"
	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/catalog"
	"github.com/civicpulse/civicpulse/pkg/cluster"
	"github.com/civicpulse/civicpulse/pkg/config"
	"github.com/civicpulse/civicpulse/pkg/llm"
	"github.com/civicpulse/civicpulse/pkg/report"
	"github.com/civicpulse/civicpulse/pkg/version"
	"github.com/civicpulse/civicpulse/pkg/voice"
)

const (
	exitConfigError = 1
	exitStartup     = 2

	// centroidLoadTimeout bounds the startup index load.
	centroidLoadTimeout = 60 * time.Second

	shutdownTimeout = 10 * time.Second
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to the environment file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load env file, continuing with existing environment",
			"path", *envFile, "error", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("Starting CivicPulse", "version", version.Full())

	// 1. Configuration and catalog
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(exitConfigError)
	}

	reg, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Error("Failed to load product catalog", "error", err)
		os.Exit(exitConfigError)
	}
	logger.Info("Catalog loaded", "products", len(reg.IDs()))

	// 2. LLM client and embedding dimension probe
	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
	})
	if err != nil {
		logger.Error("Failed to initialize LLM client", "error", err)
		os.Exit(exitConfigError)
	}
	logger.Info("LLM client initialized", "model", cfg.LLMModel, "base_url", cfg.LLMBaseURL)

	// 3. Centroid index and cluster predictor
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), centroidLoadTimeout)
	defer cancelStartup()

	centroidStore, err := cluster.NewStore(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to cluster storage", "error", err)
		os.Exit(exitStartup)
	}
	defer centroidStore.Close()

	level1, level2, err := centroidStore.LoadCentroids(startupCtx)
	if err != nil {
		logger.Error("Failed to load cluster centroids", "error", err)
		os.Exit(exitStartup)
	}
	index, err := cluster.NewIndex(level1, level2)
	if err != nil {
		logger.Error("Failed to build centroid index", "error", err)
		os.Exit(exitStartup)
	}
	logger.Info("Centroid index loaded", "level1", len(level1), "level2", len(level2), "dim", index.Dim())

	predictor := cluster.NewPredictor(llmClient, llmClient, index)
	if err := predictor.VerifyDimension(startupCtx); err != nil {
		logger.Error("Embedding model does not match centroid index", "error", err)
		os.Exit(exitStartup)
	}

	// 4. Voice layer, optional
	var voiceClient voice.Client
	if cfg.VoiceEnabled() {
		voiceClient = voice.NewGradiumClient(cfg.VoiceAPIKey, cfg.VoiceBaseURL, logger)
		logger.Info("Voice client initialized", "base_url", cfg.VoiceBaseURL)
	} else {
		logger.Info("VOICE_API_KEY not set, voice endpoints disabled")
	}

	// 5. Session pipeline and HTTP server
	store := artifact.NewStore(reg, cfg.ArtifactDir)
	orchestrator := agent.NewOrchestrator(llmClient, reg, store, predictor, logger)
	reportBuilder := report.NewBuilder(llmClient, predictor, store, logger)

	server := api.NewServer(cfg.HTTPPort, cfg.FrontendOrigin, api.Deps{
		Orchestrator: orchestrator,
		Predictor:    predictor,
		Voice:        voiceClient,
		Report:       reportBuilder,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(exitStartup)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}
