package domain

// OpenChatRequest asks for the chat between the caller and another user.
// For nugget chats OtherUserID is the teammate the caller wants advice about.
type OpenChatRequest struct {
	OtherUserID string   `json:"otherUserId"`
	GroupID     string   `json:"groupId"`
	Type        ChatType `json:"type"`
}

// SendMessageRequest carries an outgoing message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ConfirmMessageRequest carries the wording chosen after a revision prompt.
type ConfirmMessageRequest struct {
	ChosenContent string `json:"chosenContent"`
}

// SendResult is the outcome of sending a message in a user chat.
type SendResult struct {
	State      MessageState `json:"state"`
	Original   string       `json:"original,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
	Chat       *Chat        `json:"chat,omitempty"`
}

// NudgeRequest asks for a nudge to be logged and delivered.
type NudgeRequest struct {
	Type     NudgeType `json:"type"`
	GroupID  string    `json:"group_id"`
	TaskID   string    `json:"task_id"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
}

// NudgeResult is the logged nudge plus per-channel delivery results.
type NudgeResult struct {
	Nudge      *Nudge     `json:"nudge"`
	Delivered  bool       `json:"delivered"`
	Deliveries []Delivery `json:"deliveries"`
}

// UpsertUserRequest mirrors a user from the user service.
type UpsertUserRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	PushTokens []string `json:"push_tokens"`
}

// UpsertGroupRequest mirrors a group from the group service.
type UpsertGroupRequest struct {
	Name    string   `json:"name"`
	TAEmail string   `json:"ta_email"`
	Members []string `json:"members"`
}

// AddMemberRequest adds one user to a group.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

// UpsertTaskRequest mirrors a task from the task service.
type UpsertTaskRequest struct {
	GroupID  string `json:"group_id"`
	Title    string `json:"title"`
	Assignee string `json:"assignee"`
}
