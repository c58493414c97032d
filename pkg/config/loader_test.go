package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad_MergesEnvironmentFileAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  name: mailpilot
llm:
  api_key: ${GROQ_KEY}
pipeline:
  cache_ttl_seconds: 600
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: db.staging
`)
	writeFile(t, dir, "secrets.env", `
# comment
GROQ_KEY="gsk-test"
`)

	cfg, err := Load("staging", dir)
	require.NoError(t, err)

	assert.Equal(t, "db.staging", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "mailpilot", cfg.DB.Name)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, 600, cfg.Pipeline.CacheTTLSeconds)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \":9000\"\n")

	cfg, err := Load("local", dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, 3600, cfg.Pipeline.CacheTTLSeconds)
	assert.Equal(t, "inline", cfg.Pipeline.DispatchMode)
	assert.Equal(t, "primary", cfg.Calendar.CalendarID)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 2000, cfg.LLM.ReplyBodyChars)
}

func TestLoad_EnvironmentVariablesWin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "redis:\n  addr: localhost:6379\ntelegram:\n  chat_id: 1\n")

	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load("local", dir)
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
}

func TestLoad_MissingBaseFails(t *testing.T) {
	_, err := Load("local", t.TempDir())
	assert.Error(t, err)
}

func TestSubstituteString_KeepsUnknownPlaceholders(t *testing.T) {
	got := substituteString("${NOT_DEFINED_ANYWHERE_42}/x", map[string]string{})
	assert.Equal(t, "${NOT_DEFINED_ANYWHERE_42}/x", got)
}

func TestMergeMaps_Nested(t *testing.T) {
	dst := map[string]interface{}{"a": map[string]interface{}{"x": 1, "y": 2}}
	src := map[string]interface{}{"a": map[string]interface{}{"y": 3}}

	got := mergeMaps(dst, src)

	assert.Equal(t, map[string]interface{}{"x": 1, "y": 3}, got["a"])
}
