package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, 6000, cfg.Model.MaxHistoryTokens)
	assert.Equal(t, 24*time.Hour, cfg.Database.ConversationTTL)
	assert.Equal(t, 3, cfg.MaxStepRetries)
	assert.Equal(t, 25, cfg.MaxGraphIterations)
	assert.True(t, cfg.Features.SharedContext)
	assert.True(t, cfg.Features.Supervisor)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: anthropic
  name: claude-sonnet-4-0
  temperature: 0.3
services:
  batch_url: http://batch:9000
features:
  supervisor: false
max_step_retries: 5
listen_addr: ":9999"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4-0", cfg.Model.Name)
	assert.InDelta(t, 0.3, cfg.Model.Temperature, 0.001)
	assert.Equal(t, "http://batch:9000", cfg.Services.BatchURL)
	assert.False(t, cfg.Features.Supervisor)
	assert.True(t, cfg.Features.SharedContext)
	assert.Equal(t, 5, cfg.MaxStepRetries)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	// Untouched settings keep their defaults.
	assert.Equal(t, "http://localhost:8080", cfg.Services.ResultsURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("FINCHAT_MODEL", "gpt-4o-mini")
	t.Setenv("BATCH_SERVICE_URL", "http://batch.env:8000")
	t.Setenv("FINCHAT_MAX_STEP_RETRIES", "7")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	assert.Equal(t, "sk-env", cfg.APIKey())
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, "http://batch.env:8000", cfg.Services.BatchURL)
	assert.Equal(t, 7, cfg.MaxStepRetries)
	assert.True(t, cfg.Debug)
}

func TestAPIKeyFollowsProvider(t *testing.T) {
	cfg := Default()
	cfg.OpenAIAPIKey = "sk-openai"
	cfg.AnthropicAPIKey = "sk-anthropic"

	assert.Equal(t, "sk-openai", cfg.APIKey())
	cfg.Model.Provider = ProviderAnthropic
	assert.Equal(t, "sk-anthropic", cfg.APIKey())
}

func TestValidate(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		cfg := Default()
		cfg.Model.Provider = "mystery"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mystery")
	})

	t.Run("lists all missing settings", func(t *testing.T) {
		cfg := Default()
		cfg.Services.BatchURL = ""
		cfg.Database.Path = ""
		cfg.MaxStepRetries = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "services.batch_url")
		assert.Contains(t, err.Error(), "database.path")
		assert.Contains(t, err.Error(), "max_step_retries")
	})
}
