package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/nudge/internal/domain"
)

// UpsertUser mirrors a user from the user service.
func (s *Service) UpsertUser(ctx context.Context, userID string, req domain.UpsertUserRequest) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, domain.Invalid("user id and name are required")
	}
	tokens := make([]string, 0, len(req.PushTokens))
	for _, t := range req.PushTokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	user := &domain.User{UserID: userID, Name: req.Name, Email: req.Email, PushTokens: tokens}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.store.GetUser(ctx, userID)
}

// UpsertGroup mirrors a group and replaces its member list.
func (s *Service) UpsertGroup(ctx context.Context, groupID string, req domain.UpsertGroupRequest) (*domain.Group, error) {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, domain.Invalid("group id and name are required")
	}
	group := &domain.Group{GroupID: groupID, Name: req.Name, TAEmail: strings.TrimSpace(req.TAEmail), Members: req.Members}
	if err := s.store.UpsertGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to upsert group: %w", err)
	}
	return s.store.GetGroup(ctx, groupID)
}

// AddGroupMember adds one member. Adding an existing member is a conflict.
func (s *Service) AddGroupMember(ctx context.Context, groupID string, req domain.AddMemberRequest) (*domain.Group, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.Invalid("user_id is required")
	}
	if err := s.store.AddGroupMember(ctx, groupID, req.UserID); err != nil {
		return nil, err
	}
	return s.store.GetGroup(ctx, groupID)
}

// UpsertTask mirrors a task. Its nudge history is kept.
func (s *Service) UpsertTask(ctx context.Context, taskID string, req domain.UpsertTaskRequest) (*domain.Task, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(req.GroupID) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, domain.Invalid("task id, group_id and title are required")
	}
	task := &domain.Task{TaskID: taskID, GroupID: req.GroupID, Title: req.Title, Assignee: req.Assignee}
	if err := s.store.UpsertTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to upsert task: %w", err)
	}
	return s.store.GetTask(ctx, taskID)
}
