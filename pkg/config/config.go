// Package config loads and validates process configuration from the
// environment. Catalog definitions live in pkg/catalog; this package
// only resolves where to find them.
package config

import (
	"log/slog"
	"os"

	"github.com/civicpulse/civicpulse/pkg/apperr"
)

// Config holds all startup configuration resolved from the environment.
type Config struct {
	HTTPPort string

	// LLM endpoint (OpenAI-compatible).
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	EmbeddingModel string

	// Voice vendor endpoint. Empty VoiceAPIKey disables the voice layer;
	// voice endpoints then return 503.
	VoiceAPIKey  string
	VoiceBaseURL string

	// Postgres DSN for the cluster centroid tables.
	DatabaseURL string

	// Directory holding artifact CSVs and the summaries/ sibling.
	ArtifactDir string

	// Optional catalog override file; empty means the built-in catalog.
	CatalogFile string

	// CORS allowlist entry for the dashboard.
	FrontendOrigin string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load resolves configuration from the environment and validates it.
// A missing required key is a ConfigError and fatal at startup.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8000"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:       getEnv("LLM_MODEL", "gemini-2.5-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		VoiceAPIKey:    os.Getenv("VOICE_API_KEY"),
		VoiceBaseURL:   getEnv("VOICE_BASE_URL", "https://api.gradium.ai"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ArtifactDir:    getEnv("ARTIFACT_DIR", "./trends/data"),
		CatalogFile:    os.Getenv("CATALOG_FILE"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"http_port", cfg.HTTPPort,
		"llm_model", cfg.LLMModel,
		"embedding_model", cfg.EmbeddingModel,
		"artifact_dir", cfg.ArtifactDir,
		"voice_enabled", cfg.VoiceEnabled())

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LLMAPIKey == "" {
		return apperr.New(apperr.KindConfig, "LLM_API_KEY is not set")
	}
	if c.DatabaseURL == "" {
		return apperr.New(apperr.KindConfig, "DATABASE_URL is not set")
	}
	if info, err := os.Stat(c.ArtifactDir); err != nil || !info.IsDir() {
		return apperr.New(apperr.KindConfig, "ARTIFACT_DIR %q is not a readable directory", c.ArtifactDir)
	}
	return nil
}

// VoiceEnabled reports whether the voice layer was configured.
func (c *Config) VoiceEnabled() bool {
	return c.VoiceAPIKey != ""
}
