// Package moderation classifies outgoing peer messages and proposes gentler
// wording for hostile ones.
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/adapter/llm"
	"github.com/xiaot623/nudge/internal/domain"
)

const systemPrompt = `You review messages that students send to teammates in a group project chat.

Decide whether the message must be revised before it is sent.

Revise ONLY when the message contains at least one of:
- a personal attack or insult
- blame aimed at the recipient
- profanity
- sarcasm
- confrontational hostility

Do NOT revise messages that are direct, urgent or blunt but still polite. Bluntness alone is never a reason to revise.
Do NOT soften messages that are already polite.

When you revise, the suggestion must keep the sender's core intent, be about the same length as the original, and sound like a casual message between classmates rather than formal writing.

Respond with a single JSON object and nothing else:
{"revise": <true|false>, "suggestion": "<replacement text, or empty string when revise is false>"}`

// Engine runs the tone classifier.
type Engine struct {
	client llm.LLMClient
	model  string
	logger *zap.Logger
}

// NewEngine creates a moderation engine. An empty model defers to the
// client's default.
func NewEngine(client llm.LLMClient, model string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{client: client, model: model, logger: logger}
}

// Classify returns the verdict for text. Unparseable classifier output yields
// a pass verdict; only a failed call to the generator is an error.
func (e *Engine) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	temperature := 0.0
	resp, err := e.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: e.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: text},
		},
		Temperature:    &temperature,
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("classify message: %v: %w", err, domain.ErrUpstreamUnavailable)
	}

	verdict, err := ParseVerdict(resp.Text())
	if err != nil {
		e.logger.Warn("moderation verdict unparseable, passing message through",
			zap.Error(err),
			zap.String("raw", truncate(resp.Text(), 200)))
		return domain.Verdict{}, nil
	}
	return verdict, nil
}

type rawVerdict struct {
	Revise     *bool   `json:"revise"`
	Suggestion *string `json:"suggestion"`
}

// ParseVerdict decodes classifier output into a Verdict. It tolerates code
// fences and prose around the JSON object. A missing field or a revise
// verdict without a suggestion is an error.
func ParseVerdict(raw string) (domain.Verdict, error) {
	obj, ok := extractObject(raw)
	if !ok {
		return domain.Verdict{}, fmt.Errorf("no JSON object in classifier output")
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(obj), &rv); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if rv.Revise == nil {
		return domain.Verdict{}, fmt.Errorf("verdict missing revise")
	}
	if !*rv.Revise {
		return domain.Verdict{}, nil
	}
	if rv.Suggestion == nil || strings.TrimSpace(*rv.Suggestion) == "" {
		return domain.Verdict{}, fmt.Errorf("revise verdict without suggestion")
	}
	return domain.Verdict{Revise: true, Suggestion: strings.TrimSpace(*rv.Suggestion)}, nil
}

// extractObject returns the first balanced {...} in s, skipping braces
// inside JSON strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// truncate keeps at most maxLen runes of s.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
