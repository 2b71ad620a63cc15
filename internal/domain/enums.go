// Package domain defines the core domain models for the nudge service.
package domain

// ChatType distinguishes peer chats from chats with the Nugget coach.
type ChatType string

const (
	ChatTypeUser   ChatType = "user"
	ChatTypeNugget ChatType = "nugget"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	return t == ChatTypeUser || t == ChatTypeNugget
}

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderTypeUser   SenderType = "user"
	SenderTypeNugget SenderType = "nugget"
)

// NudgeType is the delivery channel requested for a nudge.
type NudgeType string

const (
	NudgeTypeReminder  NudgeType = "reminder"
	NudgeTypePhoneCall NudgeType = "phone_call"
	NudgeTypeEmailTA   NudgeType = "email_ta"
)

// Valid reports whether t is a known nudge type.
func (t NudgeType) Valid() bool {
	switch t {
	case NudgeTypeReminder, NudgeTypePhoneCall, NudgeTypeEmailTA:
		return true
	}
	return false
}

// MessageState is the position of an outgoing user message in the send flow.
type MessageState string

const (
	MessageStateDrafted           MessageState = "DRAFTED"
	MessageStateClassified        MessageState = "CLASSIFIED"
	MessageStateNeedsConfirmation MessageState = "NEEDS_CONFIRMATION"
	MessageStatePersisted         MessageState = "PERSISTED"
)

// Terminal reports whether no further transition happens without a new request.
func (s MessageState) Terminal() bool {
	return s == MessageStateNeedsConfirmation || s == MessageStatePersisted
}
