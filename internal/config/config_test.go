package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	require.Equal(t, time.Hour, cfg.ReportTTL())
	require.Equal(t, 50*time.Millisecond, cfg.IDBackoff())
	require.Equal(t, 5, cfg.Engine.IDAttempts)
	require.Equal(t, 3, cfg.Index.TopK)
	require.Empty(t, cfg.Store.Table)
	require.False(t, cfg.IsProd())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "prod"
port = 9090

[store]
table = "sessions"

[engine]
history_window = 8
chunk_size = 500

[redis]
addr = "file:6379"
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("LLM_TEMPERATURE", "0.1")
	t.Setenv("VISION_ENABLED", "true")
	t.Setenv("HISTORY_WINDOW", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProd())
	require.Equal(t, 9090, cfg.App.Port)
	require.Equal(t, "sessions", cfg.Store.Table)
	require.Equal(t, 500, cfg.Engine.ChunkSize)
	require.Equal(t, 8, cfg.Engine.HistoryWindow, "unparsable env keeps the file value")
	require.Equal(t, "env:6379", cfg.Redis.Addr)
	require.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	require.True(t, cfg.AWS.Vision)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "[app\nport ="))
	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	t.Setenv("APP_PORT", "70000")
	_, err := Load()
	require.ErrorContains(t, err, "app.port")

	t.Setenv("APP_PORT", "8080")
	t.Setenv("CHUNK_SIZE", "0")
	_, err = Load()
	require.ErrorContains(t, err, "chunk_size")
}
