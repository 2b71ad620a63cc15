package llm

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// EnvNudgeMode is the environment variable name for mode selection.
	EnvNudgeMode = "NUDGE_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Options configures NewLLMClient.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewLLMClient creates an LLM client. NUDGE_MODE=MOCK returns a MockClient;
// otherwise the provider picks the OpenAI-compatible or the Gemini client.
func NewLLMClient(ctx context.Context, opts Options, logger *zap.Logger) (LLMClient, error) {
	if os.Getenv(EnvNudgeMode) == ModeMock {
		logger.Info("NUDGE_MODE=MOCK detected, using mock LLM client")
		return NewMockClient(), nil
	}

	switch opts.Provider {
	case ProviderGemini:
		logger.Info("using gemini LLM client", zap.String("model", opts.Model))
		return NewGeminiClient(ctx, opts.APIKey, opts.Model, opts.Timeout)
	default:
		logger.Info("using openai-compatible LLM client",
			zap.String("base_url", opts.BaseURL),
			zap.String("model", opts.Model))
		return NewClient(opts.BaseURL, opts.APIKey, opts.Model, opts.Timeout), nil
	}
}
