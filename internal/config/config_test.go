package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "local", cfg.AI.Provider)
	assert.Equal(t, 6, cfg.AI.HistoryTurns)
	assert.Equal(t, 50, cfg.Chat.ArchiveLimit)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Same(t, cfg, Get())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  type: sqlite
  sql:
    dsn: "file::memory:"
ai:
  provider: openai
  timeout: 5s
  openai:
    api_key: from-file
    model: gpt-test
chat:
  archive_limit: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "file::memory:", cfg.Storage.SQL.DSN)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "from-file", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, "gpt-test", cfg.AI.ProviderSettings("openai").Model)
	assert.Equal(t, 10, cfg.Chat.ArchiveLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PYX_SERVER_PORT", "7070")
	t.Setenv("PYX_AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "env-key", cfg.AI.Anthropic.APIKey)
}

func TestFileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	path := writeConfig(t, `
ai:
  openai:
    api_key: file-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.AI.OpenAI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProviderSettingsUnknown(t *testing.T) {
	assert.Equal(t, ProviderConfig{}, AIConfig{}.ProviderSettings("local"))
}
