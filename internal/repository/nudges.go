package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xiaot623/nudge/internal/domain"
)

// CreateNudge records a nudge attempt.
func (s *SQLiteStore) CreateNudge(ctx context.Context, nudge *domain.Nudge) error {
	if nudge.Channel == nil {
		return domain.Invalid("nudge channel is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nudges (nudge_id, type, group_id, task_id, sender, receiver, ta_email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nudge.NudgeID, nudge.Type(), nudge.GroupID, nudge.TaskID, nudge.Sender, nudge.Receiver,
		nullString(nudge.TAEmail()), nudge.CreatedAt)
	return err
}

func scanNudge(row rowScanner) (*domain.Nudge, error) {
	var n domain.Nudge
	var nudgeType domain.NudgeType
	var taEmail sql.NullString
	if err := row.Scan(&n.NudgeID, &nudgeType, &n.GroupID, &n.TaskID, &n.Sender, &n.Receiver, &taEmail, &n.CreatedAt); err != nil {
		return nil, err
	}
	ch, err := domain.NewNudgeChannel(nudgeType, taEmail.String)
	if err != nil {
		return nil, fmt.Errorf("decode nudge %s: %w", n.NudgeID, err)
	}
	n.Channel = ch
	return &n, nil
}

// GetNudge retrieves a nudge by ID.
func (s *SQLiteStore) GetNudge(ctx context.Context, nudgeID string) (*domain.Nudge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT nudge_id, type, group_id, task_id, sender, receiver, ta_email, created_at FROM nudges WHERE nudge_id = ?`,
		nudgeID)
	n, err := scanNudge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ListNudgesForTask lists a task's nudges, oldest first.
func (s *SQLiteStore) ListNudgesForTask(ctx context.Context, taskID string) ([]domain.Nudge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT nudge_id, type, group_id, task_id, sender, receiver, ta_email, created_at
		 FROM nudges WHERE task_id = ? ORDER BY created_at ASC, nudge_id`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nudges := []domain.Nudge{}
	for rows.Next() {
		n, err := scanNudge(rows)
		if err != nil {
			return nil, err
		}
		nudges = append(nudges, *n)
	}
	return nudges, rows.Err()
}
