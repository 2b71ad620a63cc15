package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/nudge/internal/dispatch"
	"github.com/xiaot623/nudge/internal/domain"
	"github.com/xiaot623/nudge/policy"
)

// CreateNudge logs a nudge and delivers it. The record is written before
// delivery and kept whatever the outcome; a failed email escalation is
// returned as ErrUpstreamUnavailable together with the result.
func (s *Service) CreateNudge(ctx context.Context, caller string, req domain.NudgeRequest) (*domain.NudgeResult, error) {
	if !req.Type.Valid() {
		return nil, domain.Invalid("unknown nudge type %q", req.Type)
	}
	if req.GroupID == "" || req.TaskID == "" || req.Sender == "" || req.Receiver == "" {
		return nil, domain.Invalid("group_id, task_id, sender and receiver are required")
	}

	group, err := s.store.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, domain.NotFound("group " + req.GroupID)
	}
	task, err := s.store.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, domain.NotFound("task " + req.TaskID)
	}
	if task.GroupID != req.GroupID {
		return nil, domain.Invalid("task %s does not belong to group %s", req.TaskID, req.GroupID)
	}

	if err := s.checkNudgePolicy(ctx, caller, req, group); err != nil {
		return nil, err
	}

	channel, err := domain.NewNudgeChannel(req.Type, strings.TrimSpace(group.TAEmail))
	if err != nil {
		return nil, err
	}

	receiver, err := s.store.GetUser(ctx, req.Receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to get receiver: %w", err)
	}
	if receiver == nil {
		return nil, domain.NotFound("user " + req.Receiver)
	}
	senderName := req.Sender
	if sender, err := s.store.GetUser(ctx, req.Sender); err == nil && sender != nil && sender.Name != "" {
		senderName = sender.Name
	}

	nudge := &domain.Nudge{
		NudgeID:   "nudge_" + uuid.New().String(),
		GroupID:   req.GroupID,
		TaskID:    req.TaskID,
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Channel:   channel,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNudge(ctx, nudge); err != nil {
		return nil, fmt.Errorf("failed to create nudge: %w", err)
	}
	if err := s.store.AttachNudge(ctx, req.TaskID, nudge.NudgeID); err != nil {
		s.logger.Warn("failed to attach nudge to task",
			zap.String("nudge_id", nudge.NudgeID),
			zap.String("task_id", req.TaskID),
			zap.Error(err))
	}

	res := s.dispatcher.Dispatch(ctx, nudge, dispatch.Details{
		Receiver:   receiver,
		SenderName: senderName,
		TaskTitle:  task.Title,
		GroupName:  group.Name,
	})
	result := &domain.NudgeResult{
		Nudge:      nudge,
		Delivered:  res.Delivered,
		Deliveries: res.Deliveries,
	}

	s.logger.Info("nudge dispatched",
		zap.String("nudge_id", nudge.NudgeID),
		zap.String("type", string(nudge.Type())),
		zap.Bool("delivered", res.Delivered),
		zap.Int("deliveries", len(res.Deliveries)))

	if res.Err != nil {
		return result, fmt.Errorf("deliver nudge %s: %v: %w", nudge.NudgeID, res.Err, domain.ErrUpstreamUnavailable)
	}
	return result, nil
}

// ListTaskNudges returns the nudge history of a task in the caller's group.
func (s *Service) ListTaskNudges(ctx context.Context, caller, taskID string) ([]domain.Nudge, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, domain.NotFound("task " + taskID)
	}
	if _, err := s.groupWithMembers(ctx, task.GroupID, caller); err != nil {
		return nil, domain.NotFound("task " + taskID)
	}
	nudges, err := s.store.ListNudgesForTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nudges: %w", err)
	}
	return nudges, nil
}

func (s *Service) checkNudgePolicy(ctx context.Context, caller string, req domain.NudgeRequest, group *domain.Group) error {
	if s.policyEngine == nil {
		return nil
	}
	decision, reason, err := s.policyEngine.Evaluate(ctx, policy.NudgeInput{
		Caller:       caller,
		Type:         string(req.Type),
		GroupID:      req.GroupID,
		TaskID:       req.TaskID,
		Sender:       req.Sender,
		Receiver:     req.Receiver,
		GroupMembers: group.Members,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if decision == policy.DecisionBlock {
		if reason == "" {
			reason = "blocked by policy"
		}
		return domain.Invalid("%s", reason)
	}
	return nil
}
