// Package llm provides an abstraction for text generation backends.
package llm

import "context"

// LLMClient is the text generation capability used by moderation and advice.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ClientFunc adapts a function to LLMClient.
type ClientFunc func(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

// CreateChatCompletion calls f.
func (f ClientFunc) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	return f(ctx, req)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)
