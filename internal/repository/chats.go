package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/nudge/internal/domain"
)

const chatColumns = `chat_id, type, group_id, people, about, messages, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChat(row rowScanner) (*domain.Chat, error) {
	var chat domain.Chat
	var people, messages string
	var about sql.NullString
	if err := row.Scan(&chat.ChatID, &chat.Type, &chat.GroupID, &people, &about, &messages, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return nil, err
	}
	chat.About = about.String
	if err := json.Unmarshal([]byte(people), &chat.People); err != nil {
		return nil, fmt.Errorf("decode people of chat %s: %w", chat.ChatID, err)
	}
	if err := json.Unmarshal([]byte(messages), &chat.Messages); err != nil {
		return nil, fmt.Errorf("decode messages of chat %s: %w", chat.ChatID, err)
	}
	if chat.Messages == nil {
		chat.Messages = []domain.Message{}
	}
	return &chat, nil
}

// FindOrCreateChat looks up the chat for the identity derived from its
// arguments and creates an empty one when none exists.
func (s *SQLiteStore) FindOrCreateChat(ctx context.Context, chatType domain.ChatType, groupID, currentUser, otherUser string) (*domain.Chat, bool, error) {
	if !chatType.Valid() {
		return nil, false, domain.Invalid("unknown chat type %q", chatType)
	}
	if groupID == "" || currentUser == "" || otherUser == "" {
		return nil, false, domain.Invalid("group and both users are required")
	}
	if currentUser == otherUser {
		if chatType == domain.ChatTypeNugget {
			return nil, false, domain.Invalid("cannot ask for advice about yourself")
		}
		return nil, false, domain.Invalid("cannot start a chat with yourself")
	}

	key := domain.PairKey(chatType, currentUser, otherUser)
	chat, err := s.getChatByKey(ctx, chatType, groupID, key)
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		return chat, false, nil
	}

	people := []string{currentUser, otherUser}
	var about sql.NullString
	if chatType == domain.ChatTypeNugget {
		people = []string{currentUser}
		about = nullString(otherUser)
	}
	peopleJSON, _ := json.Marshal(people)
	now := time.Now().UTC()

	// A concurrent request may have created the same chat; the unique index
	// makes this insert a no-op and the read below returns the winner.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, type, group_id, pair_key, people, about, messages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '[]', ?, ?)
		 ON CONFLICT(type, group_id, pair_key) DO NOTHING`,
		"chat_"+uuid.New().String(), chatType, groupID, key, string(peopleJSON), about, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create chat: %w", err)
	}
	inserted, _ := res.RowsAffected()

	chat, err = s.getChatByKey(ctx, chatType, groupID, key)
	if err != nil {
		return nil, false, err
	}
	if chat == nil {
		return nil, false, fmt.Errorf("chat %s vanished after insert", key)
	}
	return chat, inserted == 1, nil
}

func (s *SQLiteStore) getChatByKey(ctx context.Context, chatType domain.ChatType, groupID, key string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE type = ? AND group_id = ? AND pair_key = ?`,
		chatType, groupID, key)
	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return chat, err
}

// GetChat retrieves a chat by ID.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id = ?`, chatID)
	chat, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("chat " + chatID)
	}
	return chat, err
}

// AppendMessage appends msg to the chat's log and bumps its updated_at.
// Timestamps never go backwards within a chat.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID string, msg domain.Message) (*domain.Chat, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return nil, domain.Invalid("message content is required")
	}
	if msg.SenderType == domain.SenderTypeNugget {
		msg.Sender = ""
	}
	if msg.MessageID == "" {
		msg.MessageID = "msg_" + uuid.New().String()[:8]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT messages FROM chats WHERE chat_id = ?`, chatID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("chat " + chatID)
	}
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode messages of chat %s: %w", chatID, err)
	}

	now := time.Now().UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if n := len(messages); n > 0 && msg.Timestamp.Before(messages[n-1].Timestamp) {
		msg.Timestamp = messages[n-1].Timestamp
	}
	messages = append(messages, msg)

	encoded, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	updatedAt := now
	if msg.Timestamp.After(updatedAt) {
		updatedAt = msg.Timestamp
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET messages = ?, updated_at = ? WHERE chat_id = ?`,
		string(encoded), updatedAt, chatID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetChat(ctx, chatID)
}

// GetChatsForUser lists chats of any type in the group that include userID,
// most recently updated first.
func (s *SQLiteStore) GetChatsForUser(ctx context.Context, groupID, userID string) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats
		 WHERE group_id = ? AND EXISTS (SELECT 1 FROM json_each(chats.people) WHERE json_each.value = ?)
		 ORDER BY updated_at DESC, chat_id`,
		groupID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []domain.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

// GetRecentPeerMessages returns the newest messages of the user chat between
// a and b, newest first. A missing chat yields no messages.
func (s *SQLiteStore) GetRecentPeerMessages(ctx context.Context, groupID, a, b string, limit int) ([]domain.Message, error) {
	chat, err := s.getChatByKey(ctx, domain.ChatTypeUser, groupID, domain.PairKey(domain.ChatTypeUser, a, b))
	if err != nil {
		return nil, err
	}
	if chat == nil || limit <= 0 {
		return []domain.Message{}, nil
	}

	out := make([]domain.Message, 0, limit)
	for i := len(chat.Messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, chat.Messages[i])
	}
	return out, nil
}
