// Package advice produces Nugget coaching replies from the peer conversation
// and the existing coaching transcript.
package advice

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/adapter/llm"
	"github.com/xiaot623/nudge/internal/domain"
)

// DefaultHistoryLimit is how many peer messages feed the prompt.
const DefaultHistoryLimit = 15

const systemPrompt = `You are Nugget, a friendly coach inside a student group project app.
A student is asking you for help dealing with a teammate.
Keep replies short (two to four sentences), supportive and casual, like a helpful classmate.
Never blame either person. Suggest one concrete, kind next step the student can take.`

// ChatReader is the slice of the conversation store the engine reads.
type ChatReader interface {
	FindOrCreateChat(ctx context.Context, chatType domain.ChatType, groupID, currentUser, otherUser string) (*domain.Chat, bool, error)
	GetRecentPeerMessages(ctx context.Context, groupID, a, b string, limit int) ([]domain.Message, error)
}

// Engine assembles context and calls the generator.
type Engine struct {
	chats        ChatReader
	client       llm.LLMClient
	model        string
	historyLimit int
	logger       *zap.Logger
}

// NewEngine creates an advice engine. historyLimit may lower the peer context
// below DefaultHistoryLimit but never raise it.
func NewEngine(chats ChatReader, client llm.LLMClient, model string, historyLimit int, logger *zap.Logger) *Engine {
	if historyLimit <= 0 || historyLimit > DefaultHistoryLimit {
		historyLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		chats:        chats,
		client:       client,
		model:        model,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// GetAdvice returns the coach's reply to newMessage. Every failure is
// reported as domain.ErrAdviceUnavailable.
func (e *Engine) GetAdvice(ctx context.Context, groupID, ownerID, aboutID, newMessage string) (string, error) {
	peer, err := e.chats.GetRecentPeerMessages(ctx, groupID, ownerID, aboutID, e.historyLimit)
	if err != nil {
		return "", unavailable("load peer messages", err)
	}
	// newest first from storage
	for i, j := 0, len(peer)-1; i < j; i, j = i+1, j-1 {
		peer[i], peer[j] = peer[j], peer[i]
	}

	chat, _, err := e.chats.FindOrCreateChat(ctx, domain.ChatTypeNugget, groupID, ownerID, aboutID)
	if err != nil {
		return "", unavailable("load coaching chat", err)
	}

	messages := BuildPrompt(ownerID, peer, chat.Messages, newMessage)

	resp, err := e.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
	})
	if err != nil {
		return "", unavailable("generate advice", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", unavailable("generate advice", fmt.Errorf("empty reply"))
	}

	e.logger.Debug("advice generated",
		zap.String("group_id", groupID),
		zap.String("chat_id", chat.ChatID),
		zap.Int("peer_messages", len(peer)),
		zap.Int("transcript_messages", len(chat.Messages)))
	return reply, nil
}

// BuildPrompt renders the request messages: the coach instruction, the peer
// summary from the owner's point of view, the coaching transcript and the
// new message. peer must be oldest first. When the transcript already ends
// with newMessage from the owner it is not repeated.
func BuildPrompt(ownerID string, peer, transcript []domain.Message, newMessage string) []llm.ChatMessage {
	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleSystem, Content: SummarizePeer(ownerID, peer)},
	}

	if n := len(transcript); n > 0 {
		last := transcript[n-1]
		if last.SenderType == domain.SenderTypeUser && last.Sender == ownerID && last.Content == newMessage {
			transcript = transcript[:n-1]
		}
	}

	for _, m := range transcript {
		role := llm.RoleUser
		if m.SenderType == domain.SenderTypeNugget {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: m.Content})
	}

	return append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: newMessage})
}

// SummarizePeer renders the recent peer conversation with "You" for the owner
// and "Them" for the teammate.
func SummarizePeer(ownerID string, peer []domain.Message) string {
	if len(peer) == 0 {
		return "Recent conversation with the teammate: (none yet)"
	}
	var b strings.Builder
	b.WriteString("Recent conversation with the teammate:\n")
	for _, m := range peer {
		who := "Them"
		if m.Sender == ownerID {
			who = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func unavailable(step string, err error) error {
	return fmt.Errorf("%s: %v: %w", step, err, domain.ErrAdviceUnavailable)
}
