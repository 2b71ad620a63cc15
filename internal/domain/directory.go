package domain

import "time"

// User mirrors an account from the user service.
type User struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	PushTokens []string  `json:"push_tokens,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary returns the public identity of u.
func (u *User) Summary() UserSummary {
	return UserSummary{UserID: u.UserID, Name: u.Name, Email: u.Email}
}

// Group mirrors a study group. TAEmail is where email_ta nudges escalate.
type Group struct {
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	TAEmail   string    `json:"ta_email,omitempty"`
	Members   []string  `json:"members"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Task mirrors a group task and its nudge history.
type Task struct {
	TaskID    string    `json:"task_id"`
	GroupID   string    `json:"group_id"`
	Title     string    `json:"title"`
	Assignee  string    `json:"assignee,omitempty"`
	Nudges    []string  `json:"nudges"`
	UpdatedAt time.Time `json:"updated_at"`
}
