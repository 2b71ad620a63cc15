package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MockClient is a mock implementation of LLMClient for local runs and tests.
// JSON-mode requests get a moderation verdict from a keyword heuristic; all
// other requests get a canned coaching reply.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

var mockHostileMarkers = []string{
	"wth", "wtf", "damn", "stupid", "idiot", "useless", "lazy", "shut up",
	"you always", "you never", "couldn't do it", "your fault",
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	responseContent := m.generateMockResponse(req)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    RoleAssistant,
					Content: responseContent,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(responseContent) / 4,
			TotalTokens:      m.estimateTokens(req) + len(responseContent)/4,
		},
	}, nil
}

// generateMockResponse generates a mock response based on the request.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	// Get the last user message
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if req.ResponseFormat != nil && req.ResponseFormat["type"] == "json_object" {
		return mockVerdict(lastUserMessage)
	}

	if lastUserMessage == "" {
		return "[MOCK] Try checking in with them directly and kindly."
	}

	return fmt.Sprintf("[MOCK] It sounds frustrating that %q. Maybe ask them how it's going and offer to split the work?", truncate(lastUserMessage, 100))
}

func mockVerdict(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range mockHostileMarkers {
		if strings.Contains(lower, marker) {
			out, _ := json.Marshal(map[string]interface{}{
				"revise":     true,
				"suggestion": "Hey, no worries if you got stuck, can you let us know where you're at?",
			})
			return string(out)
		}
	}
	return `{"revise":false,"suggestion":""}`
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
