package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NudgeChannel is the type-specific part of a nudge. Only the variants below
// implement it, so a reminder can never carry a TA email.
type NudgeChannel interface {
	Type() NudgeType
	isNudgeChannel()
}

// Reminder is a push notification to the receiver's devices.
type Reminder struct{}

// PhoneCall is a simulated call to the receiver.
type PhoneCall struct{}

// EmailTA escalates to the group's teaching assistant.
type EmailTA struct {
	TAEmail string
}

func (Reminder) Type() NudgeType  { return NudgeTypeReminder }
func (PhoneCall) Type() NudgeType { return NudgeTypePhoneCall }
func (EmailTA) Type() NudgeType   { return NudgeTypeEmailTA }

func (Reminder) isNudgeChannel()  {}
func (PhoneCall) isNudgeChannel() {}
func (EmailTA) isNudgeChannel()   {}

// NewNudgeChannel builds the channel variant for t. taEmail is required for
// email_ta and ignored otherwise.
func NewNudgeChannel(t NudgeType, taEmail string) (NudgeChannel, error) {
	switch t {
	case NudgeTypeReminder:
		return Reminder{}, nil
	case NudgeTypePhoneCall:
		return PhoneCall{}, nil
	case NudgeTypeEmailTA:
		if taEmail == "" {
			return nil, Invalid("ta_email is required for %s nudges", t)
		}
		return EmailTA{TAEmail: taEmail}, nil
	}
	return nil, Invalid("unknown nudge type %q", t)
}

// Nudge is a logged attempt to prompt a teammate. It is never mutated.
type Nudge struct {
	NudgeID   string
	GroupID   string
	TaskID    string
	Sender    string
	Receiver  string
	Channel   NudgeChannel
	CreatedAt time.Time
}

// Type returns the nudge's channel type.
func (n *Nudge) Type() NudgeType {
	if n.Channel == nil {
		return ""
	}
	return n.Channel.Type()
}

// TAEmail returns the escalation address for email_ta nudges.
func (n *Nudge) TAEmail() string {
	if e, ok := n.Channel.(EmailTA); ok {
		return e.TAEmail
	}
	return ""
}

type nudgeJSON struct {
	NudgeID   string    `json:"nudge_id"`
	Type      NudgeType `json:"type"`
	GroupID   string    `json:"group_id"`
	TaskID    string    `json:"task_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	TAEmail   string    `json:"ta_email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalJSON flattens the channel into type and ta_email.
func (n Nudge) MarshalJSON() ([]byte, error) {
	return json.Marshal(nudgeJSON{
		NudgeID:   n.NudgeID,
		Type:      n.Type(),
		GroupID:   n.GroupID,
		TaskID:    n.TaskID,
		Sender:    n.Sender,
		Receiver:  n.Receiver,
		TAEmail:   n.TAEmail(),
		CreatedAt: n.CreatedAt,
	})
}

// UnmarshalJSON rebuilds the channel variant from type and ta_email.
func (n *Nudge) UnmarshalJSON(data []byte) error {
	var raw nudgeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ch, err := NewNudgeChannel(raw.Type, raw.TAEmail)
	if err != nil {
		return fmt.Errorf("decode nudge: %w", err)
	}
	*n = Nudge{
		NudgeID:   raw.NudgeID,
		GroupID:   raw.GroupID,
		TaskID:    raw.TaskID,
		Sender:    raw.Sender,
		Receiver:  raw.Receiver,
		Channel:   ch,
		CreatedAt: raw.CreatedAt,
	}
	return nil
}

// Delivery is the outcome of one delivery attempt within a dispatch.
type Delivery struct {
	Channel NudgeType `json:"channel"`
	Target  string    `json:"target,omitempty"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}
