package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
)

// AdviceFailure reports that the owner's message was stored but no reply
// could be produced. Chat is the state after the owner's message.
type AdviceFailure struct {
	Chat *domain.Chat
	Err  error
}

func (e *AdviceFailure) Error() string {
	return fmt.Sprintf("advice for chat %s: %v", e.Chat.ChatID, e.Err)
}

func (e *AdviceFailure) Unwrap() error {
	return e.Err
}

// SendNuggetMessage appends the owner's message, asks the coach and appends
// the reply. A failed reply leaves the owner's message in place and returns
// *AdviceFailure.
func (s *Service) SendNuggetMessage(ctx context.Context, caller, chatID, content string) (*domain.Chat, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.Invalid("content is required")
	}
	chat, err := s.loadChat(ctx, caller, chatID, domain.ChatTypeNugget)
	if err != nil {
		return nil, err
	}

	chat, err = s.appendUserMessage(ctx, chat.ChatID, caller, content)
	if err != nil {
		return nil, err
	}
	return s.reply(ctx, chat, content)
}

// RetryAdvice generates the missing reply for a nugget chat whose last
// message is the owner's.
func (s *Service) RetryAdvice(ctx context.Context, caller, chatID string) (*domain.Chat, error) {
	chat, err := s.loadChat(ctx, caller, chatID, domain.ChatTypeNugget)
	if err != nil {
		return nil, err
	}
	last := chat.LastMessage()
	if last == nil || last.SenderType != domain.SenderTypeUser {
		return nil, domain.Invalid("chat %s has no unanswered message", chat.ChatID)
	}
	return s.reply(ctx, chat, last.Content)
}

func (s *Service) reply(ctx context.Context, chat *domain.Chat, content string) (*domain.Chat, error) {
	aiCtx, cancel := s.aiContext(ctx)
	advice, err := s.advisor.GetAdvice(aiCtx, chat.GroupID, chat.Owner(), chat.About, content)
	cancel()
	if err != nil {
		s.logger.Error("advice unavailable",
			zap.String("chat_id", chat.ChatID),
			zap.Error(err))
		if !errors.Is(err, domain.ErrAdviceUnavailable) {
			err = fmt.Errorf("%v: %w", err, domain.ErrAdviceUnavailable)
		}
		return nil, &AdviceFailure{Chat: chat, Err: err}
	}

	// The reply is kept even if the caller has gone away.
	updated, err := s.store.AppendMessage(context.WithoutCancel(ctx), chat.ChatID, domain.Message{
		SenderType: domain.SenderTypeNugget,
		Content:    advice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append advice: %w", err)
	}
	return updated, nil
}
