package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
)

// SendMessage moves a peer message through moderation. A hostile message is
// returned for confirmation without being stored; anything else is appended.
func (s *Service) SendMessage(ctx context.Context, caller, chatID, content string) (*domain.SendResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.Invalid("content is required")
	}
	chat, err := s.loadChat(ctx, caller, chatID, domain.ChatTypeUser)
	if err != nil {
		return nil, err
	}

	result := &domain.SendResult{State: domain.MessageStateDrafted}

	aiCtx, cancel := s.aiContext(ctx)
	verdict, err := s.moderator.Classify(aiCtx, content)
	cancel()
	if err != nil {
		s.logger.Error("moderation failed",
			zap.String("chat_id", chat.ChatID),
			zap.Error(err))
		return nil, err
	}
	result.State = domain.MessageStateClassified

	if verdict.Revise {
		result.State = domain.MessageStateNeedsConfirmation
		result.Original = content
		result.Suggestion = verdict.Suggestion
		return result, nil
	}

	updated, err := s.appendUserMessage(context.WithoutCancel(ctx), chat.ChatID, caller, content)
	if err != nil {
		return nil, err
	}
	result.State = domain.MessageStatePersisted
	result.Chat = updated
	return result, nil
}

// ConfirmMessage stores the wording the sender settled on after a revision
// prompt. It is not classified again.
func (s *Service) ConfirmMessage(ctx context.Context, caller, chatID, chosen string) (*domain.SendResult, error) {
	if strings.TrimSpace(chosen) == "" {
		return nil, domain.Invalid("chosenContent is required")
	}
	chat, err := s.loadChat(ctx, caller, chatID, domain.ChatTypeUser)
	if err != nil {
		return nil, err
	}

	updated, err := s.appendUserMessage(ctx, chat.ChatID, caller, chosen)
	if err != nil {
		return nil, err
	}
	return &domain.SendResult{State: domain.MessageStatePersisted, Chat: updated}, nil
}

func (s *Service) appendUserMessage(ctx context.Context, chatID, sender, content string) (*domain.Chat, error) {
	chat, err := s.store.AppendMessage(ctx, chatID, domain.Message{
		SenderType: domain.SenderTypeUser,
		Sender:     sender,
		Content:    content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return chat, nil
}
