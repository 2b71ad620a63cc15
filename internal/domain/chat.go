package domain

import (
	"sort"
	"strings"
	"time"
)

// Chat is a conversation document. Messages are embedded and append-only.
type Chat struct {
	ChatID    string    `json:"chat_id"`
	Type      ChatType  `json:"type"`
	GroupID   string    `json:"group_id"`
	People    []string  `json:"people"`
	About     string    `json:"about,omitempty"` // nugget chats only
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single entry in a chat's log.
type Message struct {
	MessageID  string     `json:"message_id"`
	SenderType SenderType `json:"sender_type"`
	Sender     string     `json:"sender,omitempty"` // empty when SenderType is nugget
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
}

// HasMember reports whether userID is one of the chat's people.
func (c *Chat) HasMember(userID string) bool {
	for _, p := range c.People {
		if p == userID {
			return true
		}
	}
	return false
}

// Owner returns the human consulting the coach in a nugget chat.
func (c *Chat) Owner() string {
	if len(c.People) == 0 {
		return ""
	}
	return c.People[0]
}

// Counterpart returns the other person in a user chat.
func (c *Chat) Counterpart(userID string) string {
	for _, p := range c.People {
		if p != userID {
			return p
		}
	}
	return ""
}

// LastMessage returns the newest message, or nil for an empty chat.
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// PairKey is the identity of a chat within its group and type. User chats are
// keyed by the unordered pair; nugget chats by owner and subject.
func PairKey(chatType ChatType, currentUser, otherUser string) string {
	if chatType == ChatTypeNugget {
		return currentUser + ">" + otherUser
	}
	pair := []string{currentUser, otherUser}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}

// UserSummary is a resolved participant identity.
type UserSummary struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// ChatView is a chat with its participants resolved against the directory.
type ChatView struct {
	Chat
	Participants []UserSummary `json:"participants"`
	AboutUser    *UserSummary  `json:"about_user,omitempty"`
}

// Verdict is the transient moderation decision for an outgoing peer message.
type Verdict struct {
	Revise     bool   `json:"revise"`
	Suggestion string `json:"suggestion"`
}
