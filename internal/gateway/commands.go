package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leonletto/huddle/internal/types"
)

// ErrInvalidCommand is returned when command arguments fail validation.
// Nothing is sent in that case.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a typed request in the catalog. The value itself is the
// argument object sent on the wire.
type Command interface {
	Kind() Kind
	Validate() error
}

func invalid(k Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidCommand, k.ID(), fmt.Sprintf(format, args...))
}

func require(k Kind, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(k, "%s is required", field)
	}
	return nil
}

// CreateProject creates a project owned by the signed-in user.
type CreateProject struct {
	Name string `json:"name"`
}

func (CreateProject) Kind() Kind { return KindCreateProject }

func (c CreateProject) Validate() error { return require(c.Kind(), "name", c.Name) }

// InviteMember adds a user to a project by email.
type InviteMember struct {
	ProjectID string `json:"project_id"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
}

func (InviteMember) Kind() Kind { return KindInviteMember }

func (c InviteMember) Validate() error {
	if err := require(c.Kind(), "project_id", c.ProjectID); err != nil {
		return err
	}
	if !strings.Contains(c.Email, "@") {
		return invalid(c.Kind(), "email %q is not an address", c.Email)
	}
	return nil
}

// RemoveMember removes a user from a project.
type RemoveMember struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

func (RemoveMember) Kind() Kind { return KindRemoveMember }

func (c RemoveMember) Validate() error {
	if err := require(c.Kind(), "project_id", c.ProjectID); err != nil {
		return err
	}
	return require(c.Kind(), "user_id", c.UserID)
}

// ListMembers lists a project's members.
type ListMembers struct {
	ProjectID string `json:"project_id"`
}

func (ListMembers) Kind() Kind { return KindListMembers }

func (c ListMembers) Validate() error { return require(c.Kind(), "project_id", c.ProjectID) }

// ListTasks fetches the project's board.
type ListTasks struct {
	ProjectID string `json:"project_id"`
}

func (ListTasks) Kind() Kind { return KindListTasks }

func (c ListTasks) Validate() error { return require(c.Kind(), "project_id", c.ProjectID) }

// CreateTask adds a card to the board.
type CreateTask struct {
	ProjectID  string           `json:"project_id"`
	Title      string           `json:"title"`
	Status     types.TaskStatus `json:"status"`
	AssigneeID *string          `json:"assignee_id,omitempty"`
	CreatedBy  string           `json:"created_by,omitempty"`
}

func (CreateTask) Kind() Kind { return KindCreateTask }

func (c CreateTask) Validate() error {
	if err := require(c.Kind(), "project_id", c.ProjectID); err != nil {
		return err
	}
	if err := require(c.Kind(), "title", c.Title); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return invalid(c.Kind(), "unknown status %q", c.Status)
	}
	return nil
}

// UpdateTaskStatus moves a card to another column.
type UpdateTaskStatus struct {
	ProjectID string           `json:"project_id"`
	TaskID    string           `json:"task_id"`
	Status    types.TaskStatus `json:"status"`
}

func (UpdateTaskStatus) Kind() Kind { return KindUpdateTaskStatus }

func (c UpdateTaskStatus) Validate() error {
	if err := require(c.Kind(), "task_id", c.TaskID); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return invalid(c.Kind(), "unknown status %q", c.Status)
	}
	return nil
}

// UpdateTaskAssignee sets or clears a card's assignee. A nil AssigneeID
// clears it.
type UpdateTaskAssignee struct {
	ProjectID  string  `json:"project_id"`
	TaskID     string  `json:"task_id"`
	AssigneeID *string `json:"assignee_id"`
}

func (UpdateTaskAssignee) Kind() Kind { return KindUpdateTaskAssignee }

func (c UpdateTaskAssignee) Validate() error { return require(c.Kind(), "task_id", c.TaskID) }

// ListMessages fetches the project's chat feed. Limit <= 0 lets the host
// choose.
type ListMessages struct {
	ProjectID string `json:"project_id"`
	Limit     int    `json:"limit,omitempty"`
}

func (ListMessages) Kind() Kind { return KindListMessages }

func (c ListMessages) Validate() error { return require(c.Kind(), "project_id", c.ProjectID) }

// SendMessage posts a chat line.
type SendMessage struct {
	ProjectID   string           `json:"project_id"`
	Text        string           `json:"text"`
	AuthorID    string           `json:"author_id"`
	Sender      types.SenderKind `json:"sender"`
	SenderLabel string           `json:"sender_label,omitempty"`
}

func (SendMessage) Kind() Kind { return KindSendMessage }

func (c SendMessage) Validate() error {
	if err := require(c.Kind(), "project_id", c.ProjectID); err != nil {
		return err
	}
	if err := require(c.Kind(), "text", c.Text); err != nil {
		return err
	}
	switch c.Sender {
	case types.SenderUser, types.SenderAssistant:
	default:
		return invalid(c.Kind(), "unknown sender %q", c.Sender)
	}
	return nil
}

// UpsertPresence reports the local user's liveness.
type UpsertPresence struct {
	ProjectID    string               `json:"project_id"`
	UserID       string               `json:"user_id"`
	Status       types.PresenceStatus `json:"status"`
	LastActiveAt time.Time            `json:"last_active_at"`
}

func (UpsertPresence) Kind() Kind { return KindUpsertPresence }

func (c UpsertPresence) Validate() error {
	if err := require(c.Kind(), "project_id", c.ProjectID); err != nil {
		return err
	}
	if err := require(c.Kind(), "user_id", c.UserID); err != nil {
		return err
	}
	if c.Status != types.PresenceOnline && c.Status != types.PresenceIdle {
		return invalid(c.Kind(), "unknown presence status %q", c.Status)
	}
	return nil
}

// Subscribe asks the host to start push fan-out for a project.
type Subscribe struct {
	ProjectID string `json:"project_id"`
}

func (Subscribe) Kind() Kind { return KindSubscribe }

func (c Subscribe) Validate() error { return require(c.Kind(), "project_id", c.ProjectID) }

// Unsubscribe stops push fan-out for a project.
type Unsubscribe struct {
	ProjectID string `json:"project_id"`
}

func (Unsubscribe) Kind() Kind { return KindUnsubscribe }

func (c Unsubscribe) Validate() error { return require(c.Kind(), "project_id", c.ProjectID) }

// GetSession reads the current authentication state.
type GetSession struct{}

func (GetSession) Kind() Kind      { return KindGetSession }
func (GetSession) Validate() error { return nil }

// GetUser reads the signed-in user's profile.
type GetUser struct{}

func (GetUser) Kind() Kind      { return KindGetUser }
func (GetUser) Validate() error { return nil }

// SignIn authenticates with email and password.
type SignIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (SignIn) Kind() Kind { return KindSignIn }

func (c SignIn) Validate() error {
	if err := require(c.Kind(), "email", c.Email); err != nil {
		return err
	}
	return require(c.Kind(), "password", c.Password)
}

// SignUp registers a new account and signs it in.
type SignUp struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (SignUp) Kind() Kind { return KindSignUp }

func (c SignUp) Validate() error {
	if err := require(c.Kind(), "email", c.Email); err != nil {
		return err
	}
	return require(c.Kind(), "password", c.Password)
}

// SignOut ends the session.
type SignOut struct{}

func (SignOut) Kind() Kind      { return KindSignOut }
func (SignOut) Validate() error { return nil }

// GenerateWorkBreakdown sends a planning prompt to the AI backend.
type GenerateWorkBreakdown struct {
	ProjectID string `json:"project_id,omitempty"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
}

func (GenerateWorkBreakdown) Kind() Kind { return KindGenerateWorkBreakdown }

func (c GenerateWorkBreakdown) Validate() error { return require(c.Kind(), "prompt", c.Prompt) }

// SuggestFromSelection asks the AI backend about a selected passage.
type SuggestFromSelection struct {
	ProjectID string `json:"project_id,omitempty"`
	Selection string `json:"selection"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
}

func (SuggestFromSelection) Kind() Kind { return KindSuggestFromSelection }

func (c SuggestFromSelection) Validate() error {
	if strings.TrimSpace(c.Selection) == "" && strings.TrimSpace(c.Prompt) == "" {
		return invalid(c.Kind(), "selection or prompt is required")
	}
	return nil
}

// RepoSummary fetches recent activity for "owner/name".
type RepoSummary struct {
	Repo string `json:"repo"`
}

func (RepoSummary) Kind() Kind { return KindRepoSummary }

func (c RepoSummary) Validate() error { return validRepo(c.Kind(), c.Repo) }

// CreatePullRequest opens a pull request from Head into Base.
type CreatePullRequest struct {
	Repo  string `json:"repo"`
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

func (CreatePullRequest) Kind() Kind { return KindCreatePullRequest }

func (c CreatePullRequest) Validate() error {
	if err := validRepo(c.Kind(), c.Repo); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{{"title", c.Title}, {"head", c.Head}, {"base", c.Base}} {
		if err := require(c.Kind(), f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// CommentPullRequest adds a comment to a pull request.
type CommentPullRequest struct {
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	Body   string `json:"body"`
}

func (CommentPullRequest) Kind() Kind { return KindCommentPullRequest }

func (c CommentPullRequest) Validate() error {
	if err := validRepo(c.Kind(), c.Repo); err != nil {
		return err
	}
	if c.Number <= 0 {
		return invalid(c.Kind(), "pull request number must be positive")
	}
	return require(c.Kind(), "body", c.Body)
}

// MergePullRequest merges a pull request. Method is merge, squash or rebase;
// empty lets the host choose.
type MergePullRequest struct {
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	Method string `json:"method,omitempty"`
}

func (MergePullRequest) Kind() Kind { return KindMergePullRequest }

func (c MergePullRequest) Validate() error {
	if err := validRepo(c.Kind(), c.Repo); err != nil {
		return err
	}
	if c.Number <= 0 {
		return invalid(c.Kind(), "pull request number must be positive")
	}
	switch c.Method {
	case "", "merge", "squash", "rebase":
		return nil
	default:
		return invalid(c.Kind(), "unknown merge method %q", c.Method)
	}
}

func validRepo(k Kind, repo string) error {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return invalid(k, "repo %q must be owner/name", repo)
	}
	return nil
}

// NewCommand returns a zero Command for k, for decoding incoming arguments.
func NewCommand(k Kind) (Command, bool) {
	switch k {
	case KindCreateProject:
		return &CreateProject{}, true
	case KindInviteMember:
		return &InviteMember{}, true
	case KindRemoveMember:
		return &RemoveMember{}, true
	case KindListMembers:
		return &ListMembers{}, true
	case KindListTasks:
		return &ListTasks{}, true
	case KindCreateTask:
		return &CreateTask{}, true
	case KindUpdateTaskStatus:
		return &UpdateTaskStatus{}, true
	case KindUpdateTaskAssignee:
		return &UpdateTaskAssignee{}, true
	case KindListMessages:
		return &ListMessages{}, true
	case KindSendMessage:
		return &SendMessage{}, true
	case KindUpsertPresence:
		return &UpsertPresence{}, true
	case KindSubscribe:
		return &Subscribe{}, true
	case KindUnsubscribe:
		return &Unsubscribe{}, true
	case KindGetSession:
		return &GetSession{}, true
	case KindGetUser:
		return &GetUser{}, true
	case KindSignIn:
		return &SignIn{}, true
	case KindSignUp:
		return &SignUp{}, true
	case KindSignOut:
		return &SignOut{}, true
	case KindGenerateWorkBreakdown:
		return &GenerateWorkBreakdown{}, true
	case KindSuggestFromSelection:
		return &SuggestFromSelection{}, true
	case KindRepoSummary:
		return &RepoSummary{}, true
	case KindCreatePullRequest:
		return &CreatePullRequest{}, true
	case KindCommentPullRequest:
		return &CommentPullRequest{}, true
	case KindMergePullRequest:
		return &MergePullRequest{}, true
	default:
		return nil, false
	}
}
