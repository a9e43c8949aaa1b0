package types

import "time"

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Valid reports whether s is one of the known board columns. The store does
// not enforce this on remote rows; it is used when validating local input.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskBacklog, TaskInProgress, TaskDone:
		return true
	default:
		return false
	}
}

// Next returns the status that follows s in the suggested flow
// backlog -> in_progress -> done. Unknown statuses restart at backlog.
func (s TaskStatus) Next() (TaskStatus, bool) {
	switch s {
	case TaskBacklog:
		return TaskInProgress, true
	case TaskInProgress:
		return TaskDone, true
	case TaskDone:
		return "", false
	default:
		return TaskBacklog, true
	}
}

// Task is a card on the shared board.
type Task struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	AssigneeID *string    `json:"assignee_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Clone returns a copy of t that shares no pointers with it.
func (t Task) Clone() Task {
	if t.AssigneeID != nil {
		a := *t.AssigneeID
		t.AssigneeID = &a
	}
	return t
}

// SenderKind distinguishes human-authored from assistant-authored messages.
type SenderKind string

const (
	SenderUser      SenderKind = "user"
	SenderAssistant SenderKind = "assistant"
)

// MessageStatus is local-only delivery state. Rows returned by the remote
// store never carry it.
type MessageStatus string

const (
	MessageSending MessageStatus = "sending"
	MessageFailed  MessageStatus = "failed"
)

// Message is one line of the project chat feed.
type Message struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Text        string        `json:"text"`
	AuthorID    string        `json:"author_id"`
	Sender      SenderKind    `json:"sender"`
	SenderLabel string        `json:"sender_label,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Status      MessageStatus `json:"status,omitempty"`
}

// PresenceStatus is the liveness a client reports for its user.
type PresenceStatus string

const (
	PresenceOnline PresenceStatus = "online"
	PresenceIdle   PresenceStatus = "idle"
)

// Presence is the single liveness row for a (user, project) pair.
type Presence struct {
	UserID       string         `json:"user_id"`
	ProjectID    string         `json:"project_id"`
	Status       PresenceStatus `json:"status"`
	LastActiveAt time.Time      `json:"last_active_at"`
}

// Project is a shared workspace.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// Member is a user's membership in a project.
type Member struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}

// User is the signed-in identity. It does not change within a session.
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Session is what the host reports for the current authentication state.
type Session struct {
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
