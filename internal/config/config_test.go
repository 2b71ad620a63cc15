package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("ADVICE_HISTORY_LIMIT", "")
	t.Setenv("LLM_TIMEOUT_MS", "")
	t.Setenv("SMTP_TIMEOUT_MS", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15, cfg.AdviceHistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 10*time.Second, cfg.SMTPTimeout)
}

func TestDefaultDatabaseURLAvoidsSharedCache(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg := Load()
	assert.NotContains(t, cfg.DatabaseURL, "cache=shared")
	assert.Contains(t, cfg.DatabaseURL, "_busy_timeout=")
	assert.Contains(t, cfg.DatabaseURL, "_journal_mode=WAL")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PUSH_BATCH_TIMEOUT_MS", "250")
	t.Setenv("LLM_PROVIDER", "gemini")

	cfg := Load()
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.PushBatchTimeout)
	assert.Equal(t, "gemini", cfg.LLMProvider)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("INTERNAL_PORT", "not-a-number")
	assert.Equal(t, 8081, getEnvInt("INTERNAL_PORT", 8081))
}
