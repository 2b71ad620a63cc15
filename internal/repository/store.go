// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/xiaot623/nudge/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	ChatStore
	NudgeStore
	Directory

	// Lifecycle
	Close() error
}

// ChatStore owns the chat documents and their embedded message logs.
type ChatStore interface {
	// FindOrCreateChat returns the chat identified by (type, group, pair),
	// creating an empty one when none exists. created reports which happened.
	FindOrCreateChat(ctx context.Context, chatType domain.ChatType, groupID, currentUser, otherUser string) (chat *domain.Chat, created bool, err error)
	// AppendMessage appends msg in one transaction and returns the updated chat.
	AppendMessage(ctx context.Context, chatID string, msg domain.Message) (*domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	GetChatsForUser(ctx context.Context, groupID, userID string) ([]domain.Chat, error)
	// GetRecentPeerMessages returns up to limit messages of the user chat
	// between a and b, newest first.
	GetRecentPeerMessages(ctx context.Context, groupID, a, b string, limit int) ([]domain.Message, error)
}

// NudgeStore records nudge attempts.
type NudgeStore interface {
	CreateNudge(ctx context.Context, nudge *domain.Nudge) error
	GetNudge(ctx context.Context, nudgeID string) (*domain.Nudge, error)
	ListNudgesForTask(ctx context.Context, taskID string) ([]domain.Nudge, error)
}

// Directory is the local mirror of the user, group and task services.
// Getters return (nil, nil) when the record does not exist.
type Directory interface {
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	UpsertGroup(ctx context.Context, group *domain.Group) error
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error

	UpsertTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	AttachNudge(ctx context.Context, taskID, nudgeID string) error
}
