package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/xiaot623/nudge/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			push_tokens TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			group_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			ta_email TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			title TEXT NOT NULL,
			assignee TEXT,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS task_nudges (
			task_id TEXT NOT NULL,
			nudge_id TEXT NOT NULL,
			attached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (task_id, nudge_id),
			FOREIGN KEY (task_id) REFERENCES tasks(task_id)
		)`,
		// Chats are documents: people and messages are embedded JSON arrays.
		`CREATE TABLE IF NOT EXISTS chats (
			chat_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			group_id TEXT NOT NULL,
			pair_key TEXT NOT NULL,
			people TEXT NOT NULL,
			about TEXT,
			messages TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chats_identity ON chats(type, group_id, pair_key)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_group_updated ON chats(group_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS nudges (
			nudge_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			group_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			ta_email TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (type = 'email_ta' OR ta_email IS NULL)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nudges_task ON nudges(task_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Databases created before tasks carried an assignee.
	if err := s.ensureColumn("tasks", "assignee", "ALTER TABLE tasks ADD COLUMN assignee TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// UpsertUser creates or replaces a user.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	tokens, _ := json.Marshal(user.PushTokens)
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, push_tokens, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, email = excluded.email,
		 push_tokens = excluded.push_tokens, updated_at = excluded.updated_at`,
		user.UserID, user.Name, nullString(user.Email), string(tokens), user.UpdatedAt)
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var email, tokens sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, push_tokens, updated_at FROM users WHERE user_id = ?`,
		userID).Scan(&user.UserID, &user.Name, &email, &tokens, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	if tokens.Valid && tokens.String != "" {
		if err := json.Unmarshal([]byte(tokens.String), &user.PushTokens); err != nil {
			return nil, fmt.Errorf("decode push tokens for %s: %w", userID, err)
		}
	}
	return &user, nil
}

// UpsertGroup creates or replaces a group and its member set.
func (s *SQLiteStore) UpsertGroup(ctx context.Context, group *domain.Group) error {
	if group.UpdatedAt.IsZero() {
		group.UpdatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (group_id, name, ta_email, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET name = excluded.name, ta_email = excluded.ta_email,
		 updated_at = excluded.updated_at`,
		group.GroupID, group.Name, nullString(group.TAEmail), group.UpdatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, group.GroupID); err != nil {
		return err
	}
	for _, m := range group.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)`,
			group.GroupID, m, group.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetGroup retrieves a group and its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var group domain.Group
	var taEmail sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, name, ta_email, updated_at FROM groups WHERE group_id = ?`,
		groupID).Scan(&group.GroupID, &group.Name, &taEmail, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	group.TAEmail = taEmail.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	group.Members = []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		group.Members = append(group.Members, uid)
	}
	return &group, rows.Err()
}

// AddGroupMember adds a user to a group. Duplicate membership is ErrConflict.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)`,
		groupID, userID, time.Now().UTC())
	if err != nil && isConstraintViolation(err) {
		group, gerr := s.GetGroup(ctx, groupID)
		if gerr == nil && group == nil {
			return domain.NotFound("group " + groupID)
		}
		return fmt.Errorf("user %s already in group %s: %w", userID, groupID, domain.ErrConflict)
	}
	return err
}

// UpsertTask creates or replaces a task. Its nudge history is kept.
func (s *SQLiteStore) UpsertTask(ctx context.Context, task *domain.Task) error {
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, group_id, title, assignee, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET group_id = excluded.group_id, title = excluded.title,
		 assignee = excluded.assignee, updated_at = excluded.updated_at`,
		task.TaskID, task.GroupID, task.Title, nullString(task.Assignee), task.UpdatedAt)
	return err
}

// GetTask retrieves a task and the ids of the nudges attached to it.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	var assignee sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, group_id, title, assignee, updated_at FROM tasks WHERE task_id = ?`,
		taskID).Scan(&task.TaskID, &task.GroupID, &task.Title, &assignee, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	task.Assignee = assignee.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT nudge_id FROM task_nudges WHERE task_id = ? ORDER BY attached_at, nudge_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	task.Nudges = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		task.Nudges = append(task.Nudges, id)
	}
	return &task, rows.Err()
}

// AttachNudge links a nudge into a task's history.
func (s *SQLiteStore) AttachNudge(ctx context.Context, taskID, nudgeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_nudges (task_id, nudge_id, attached_at) VALUES (?, ?, ?)`,
		taskID, nudgeID, time.Now().UTC())
	if err != nil && isConstraintViolation(err) {
		return domain.NotFound("task " + taskID)
	}
	return err
}
