// Package config provides configuration for the nudge service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int

	// Database
	DatabaseURL string

	// Text generation
	LLMProvider string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	// Advice context
	AdviceHistoryLimit int

	// Push gateway
	PushURL          string
	PushAccessToken  string
	PushBatchTimeout time.Duration

	// Mail
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	SMTPTimeout  time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		InternalPort:       getEnvInt("INTERNAL_PORT", 8081),
		DatabaseURL:        getEnv("DATABASE_URL", "file:nudge.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"),
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:         time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		AdviceHistoryLimit: getEnvInt("ADVICE_HISTORY_LIMIT", 15),
		PushURL:            getEnv("PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		PushAccessToken:    getEnv("PUSH_ACCESS_TOKEN", ""),
		PushBatchTimeout:   time.Duration(getEnvInt("PUSH_BATCH_TIMEOUT_MS", 5000)) * time.Millisecond,
		SMTPAddr:           getEnv("SMTP_ADDR", ""),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		MailFrom:           getEnv("MAIL_FROM", "nudge@localhost"),
		SMTPTimeout:        time.Duration(getEnvInt("SMTP_TIMEOUT_MS", 10000)) * time.Millisecond,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
