package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/domain"
)

// OpenChat returns the chat between the caller and req.OtherUserID, creating
// it on first contact. Both users must belong to the group.
func (s *Service) OpenChat(ctx context.Context, caller string, req domain.OpenChatRequest) (*domain.Chat, bool, error) {
	if req.Type == "" {
		req.Type = domain.ChatTypeUser
	}
	if !req.Type.Valid() {
		return nil, false, domain.Invalid("unknown chat type %q", req.Type)
	}
	if strings.TrimSpace(req.GroupID) == "" || strings.TrimSpace(req.OtherUserID) == "" {
		return nil, false, domain.Invalid("groupId and otherUserId are required")
	}
	if caller == req.OtherUserID {
		if req.Type == domain.ChatTypeNugget {
			return nil, false, domain.Invalid("cannot ask for advice about yourself")
		}
		return nil, false, domain.Invalid("cannot start a chat with yourself")
	}

	if _, err := s.groupWithMembers(ctx, req.GroupID, caller, req.OtherUserID); err != nil {
		return nil, false, err
	}

	chat, created, err := s.store.FindOrCreateChat(ctx, req.Type, req.GroupID, caller, req.OtherUserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open chat: %w", err)
	}
	if created {
		s.logger.Info("chat created",
			zap.String("chat_id", chat.ChatID),
			zap.String("type", string(chat.Type)),
			zap.String("group_id", chat.GroupID))
	}
	return chat, created, nil
}

// ListChats returns the caller's chats in a group, most recently updated first.
func (s *Service) ListChats(ctx context.Context, caller, groupID string) ([]domain.Chat, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, domain.Invalid("gid is required")
	}
	chats, err := s.store.GetChatsForUser(ctx, groupID, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// GetChat returns a chat the caller takes part in, with participants resolved.
func (s *Service) GetChat(ctx context.Context, caller, chatID string) (*domain.ChatView, error) {
	chat, err := s.loadChat(ctx, caller, chatID, "")
	if err != nil {
		return nil, err
	}
	return s.resolveChat(ctx, chat)
}

// loadChat fetches a chat and checks that caller is a member. A chat the
// caller is not in is reported as missing. wantType, when set, must match.
func (s *Service) loadChat(ctx context.Context, caller, chatID string, wantType domain.ChatType) (*domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, domain.Invalid("chat id is required")
	}
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(caller) {
		return nil, domain.NotFound("chat " + chatID)
	}
	if wantType != "" && chat.Type != wantType {
		return nil, domain.Invalid("chat %s is a %s chat", chatID, chat.Type)
	}
	return chat, nil
}

func (s *Service) resolveChat(ctx context.Context, chat *domain.Chat) (*domain.ChatView, error) {
	view := &domain.ChatView{Chat: *chat, Participants: make([]domain.UserSummary, 0, len(chat.People))}
	for _, id := range chat.People {
		summary, err := s.summarize(ctx, id)
		if err != nil {
			return nil, err
		}
		view.Participants = append(view.Participants, summary)
	}
	if chat.About != "" {
		summary, err := s.summarize(ctx, chat.About)
		if err != nil {
			return nil, err
		}
		view.AboutUser = &summary
	}
	return view, nil
}

// summarize falls back to the bare id for users not mirrored yet.
func (s *Service) summarize(ctx context.Context, userID string) (domain.UserSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.UserSummary{}, fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}
	if user == nil {
		return domain.UserSummary{UserID: userID, Name: userID}, nil
	}
	return user.Summary(), nil
}

func (s *Service) groupWithMembers(ctx context.Context, groupID string, users ...string) (*domain.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("group " + groupID)
	}
	for _, u := range users {
		if !group.HasMember(u) {
			return nil, domain.NotFound(fmt.Sprintf("user %s in group %s", u, groupID))
		}
	}
	return group, nil
}
