package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luislascano01/Stratvithor/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Orchestrator.MaxContextRetries)
	assert.Equal(t, 0.95, cfg.Summarizer.HighWaterMark)
	assert.True(t, cfg.Summarizer.IdleUnload)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	content := `
server:
  port: 9000
  host: "127.0.0.1"

llm:
  provider: "openai"
  model: "gpt-4o"

orchestrator:
  max_context_retries: 2

registry:
  db_path: "/tmp/custom-runs.db"
`
	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "stratvithor-*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	cfg, err := config.Load(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Orchestrator.MaxContextRetries)
	assert.Equal(t, "/tmp/custom-runs.db", cfg.Registry.DBPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STRATVITHOR_SERVER_PORT", "9090")
	t.Setenv("STRATVITHOR_LLM_PROVIDER", "anthropic")
	t.Setenv("STRATVITHOR_ORCHESTRATOR_MAX_CONTEXT_RETRIES", "9")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 9, cfg.Orchestrator.MaxContextRetries)
}

func TestDurationFieldsParse(t *testing.T) {
	t.Parallel()

	content := `
search:
  health_poll_interval: "15s"
  global_scrape_budget: "2m"
summarizer:
  idle_timeout: "45s"
`
	tmpDir := t.TempDir()
	tmpFile, err := os.CreateTemp(tmpDir, "stratvithor-*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	cfg, err := config.Load(tmpFile.Name())
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Search.HealthPollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Search.GlobalScrapeBudget)
	assert.Equal(t, 45*time.Second, cfg.Summarizer.IdleTimeout)
}

func TestValidateRejectsBadPort(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:       config.ServerConfig{Port: 0},
		LLM:          config.LLMConfig{Provider: "mock"},
		Summarizer:   config.SummarizerConfig{HighWaterMark: 0.9},
		Registry:     config.RegistryConfig{DBPath: "runs.db"},
		Orchestrator: config.OrchestratorConfig{MaxContextRetries: 1},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidPort)
}

func TestValidateRejectsMissingLLMProvider(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:       config.ServerConfig{Port: 8080},
		Summarizer:   config.SummarizerConfig{HighWaterMark: 0.9},
		Registry:     config.RegistryConfig{DBPath: "runs.db"},
		Orchestrator: config.OrchestratorConfig{MaxContextRetries: 1},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrMissingLLMProvider)
}
