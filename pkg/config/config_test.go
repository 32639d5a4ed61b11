package config

import (
	"testing"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/civicpulse")
	t.Setenv("ARTIFACT_DIR", t.TempDir())
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8000", cfg.HTTPPort)
		assert.Equal(t, "gemini-2.5-flash", cfg.LLMModel)
		assert.Equal(t, "http://localhost:3000", cfg.FrontendOrigin)
		assert.False(t, cfg.VoiceEnabled())
	})

	t.Run("missing LLM_API_KEY is a config error", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LLM_API_KEY", "")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	})

	t.Run("missing DATABASE_URL is a config error", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DATABASE_URL", "")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	})

	t.Run("bad artifact dir is a config error", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ARTIFACT_DIR", "/nonexistent/path")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	})

	t.Run("voice enabled when key present", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VOICE_API_KEY", "voice-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.VoiceEnabled())
	})
}
