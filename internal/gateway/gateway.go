// Package gateway is the typed facade over the remote command catalog.
// Each method is one command id with a fixed argument shape. Retries are
// the caller's business.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leonletto/huddle/internal/transport"
	"github.com/leonletto/huddle/internal/types"
)

// Default per-request budgets.
const (
	DefaultTimeout     = transport.DefaultTimeout
	DefaultLongTimeout = 20 * time.Second
)

// Sender is the request/response pipe the gateway issues commands over.
// *transport.Channel satisfies it.
type Sender interface {
	Send(ctx context.Context, commandID string, args any, timeout time.Duration) (json.RawMessage, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeouts overrides the default and long request budgets. Zero keeps
// the current value.
func WithTimeouts(normal, long time.Duration) Option {
	return func(g *Gateway) {
		if normal > 0 {
			g.timeout = normal
		}
		if long > 0 {
			g.longTimeout = long
		}
	}
}

// Gateway issues catalog commands over a Sender.
type Gateway struct {
	sender      Sender
	timeout     time.Duration
	longTimeout time.Duration
}

// New creates a Gateway over s.
func New(s Sender, opts ...Option) *Gateway {
	g := &Gateway{
		sender:      s,
		timeout:     DefaultTimeout,
		longTimeout: DefaultLongTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TimeoutFor returns the budget used for commands of kind k.
func (g *Gateway) TimeoutFor(k Kind) time.Duration {
	if k.Long() {
		return g.longTimeout
	}
	return g.timeout
}

// Execute validates cmd and sends it, returning the unwrapped result data.
func (g *Gateway) Execute(ctx context.Context, cmd Command) (json.RawMessage, error) {
	k := cmd.Kind()
	if k.ID() == "" {
		return nil, fmt.Errorf("%w: unknown command kind %d", ErrInvalidCommand, int(k))
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return g.sender.Send(ctx, k.ID(), cmd, g.TimeoutFor(k))
}

// CreateProject creates a project and returns the stored row, which may be
// nil if the host answers without one.
func (g *Gateway) CreateProject(ctx context.Context, name string) (*types.Project, error) {
	return executeObject[types.Project](ctx, g, CreateProject{Name: name})
}

// InviteMember invites email into projectID.
func (g *Gateway) InviteMember(ctx context.Context, projectID, email, role string) (*types.Member, error) {
	return executeObject[types.Member](ctx, g, InviteMember{ProjectID: projectID, Email: email, Role: role})
}

// RemoveMember removes userID from projectID.
func (g *Gateway) RemoveMember(ctx context.Context, projectID, userID string) error {
	_, err := g.Execute(ctx, RemoveMember{ProjectID: projectID, UserID: userID})
	return err
}

// ListMembers lists projectID's members.
func (g *Gateway) ListMembers(ctx context.Context, projectID string) ([]types.Member, error) {
	return executeList[types.Member](ctx, g, ListMembers{ProjectID: projectID})
}

// ListTasks fetches the board for projectID.
func (g *Gateway) ListTasks(ctx context.Context, projectID string) ([]types.Task, error) {
	return executeList[types.Task](ctx, g, ListTasks{ProjectID: projectID})
}

// CreateTask creates a task.
func (g *Gateway) CreateTask(ctx context.Context, cmd CreateTask) (*types.Task, error) {
	return executeObject[types.Task](ctx, g, cmd)
}

// UpdateTaskStatus moves taskID to status.
func (g *Gateway) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status types.TaskStatus) error {
	_, err := g.Execute(ctx, UpdateTaskStatus{ProjectID: projectID, TaskID: taskID, Status: status})
	return err
}

// UpdateTaskAssignee sets taskID's assignee; nil clears it.
func (g *Gateway) UpdateTaskAssignee(ctx context.Context, projectID, taskID string, assigneeID *string) error {
	_, err := g.Execute(ctx, UpdateTaskAssignee{ProjectID: projectID, TaskID: taskID, AssigneeID: assigneeID})
	return err
}

// ListMessages fetches the chat feed for projectID.
func (g *Gateway) ListMessages(ctx context.Context, projectID string) ([]types.Message, error) {
	return executeList[types.Message](ctx, g, ListMessages{ProjectID: projectID})
}

// SendMessage posts a chat line.
func (g *Gateway) SendMessage(ctx context.Context, cmd SendMessage) (*types.Message, error) {
	return executeObject[types.Message](ctx, g, cmd)
}

// UpsertPresence reports liveness for a (user, project) pair.
func (g *Gateway) UpsertPresence(ctx context.Context, p types.Presence) error {
	_, err := g.Execute(ctx, UpsertPresence{
		ProjectID:    p.ProjectID,
		UserID:       p.UserID,
		Status:       p.Status,
		LastActiveAt: p.LastActiveAt,
	})
	return err
}

// Subscribe starts push fan-out for projectID.
func (g *Gateway) Subscribe(ctx context.Context, projectID string) error {
	_, err := g.Execute(ctx, Subscribe{ProjectID: projectID})
	return err
}

// Unsubscribe stops push fan-out for projectID.
func (g *Gateway) Unsubscribe(ctx context.Context, projectID string) error {
	_, err := g.Execute(ctx, Unsubscribe{ProjectID: projectID})
	return err
}

// GetSession returns the current session, or nil when signed out.
func (g *Gateway) GetSession(ctx context.Context) (*types.Session, error) {
	s, err := executeObject[types.Session](ctx, g, GetSession{})
	if err != nil || s == nil || s.User == nil {
		return nil, err
	}
	return s, nil
}

// GetUser returns the signed-in user, or nil when signed out.
func (g *Gateway) GetUser(ctx context.Context) (*types.User, error) {
	return executeObject[types.User](ctx, g, GetUser{})
}

// SignIn authenticates and returns the new session.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*types.Session, error) {
	return executeSession(ctx, g, SignIn{Email: email, Password: password})
}

// SignUp registers an account and returns its session.
func (g *Gateway) SignUp(ctx context.Context, email, password, displayName string) (*types.Session, error) {
	return executeSession(ctx, g, SignUp{Email: email, Password: password, DisplayName: displayName})
}

// SignOut ends the session.
func (g *Gateway) SignOut(ctx context.Context) error {
	_, err := g.Execute(ctx, SignOut{})
	return err
}

// GenerateWorkBreakdown returns the AI backend's raw text for a planning prompt.
func (g *Gateway) GenerateWorkBreakdown(ctx context.Context, cmd GenerateWorkBreakdown) (string, error) {
	return executeText(ctx, g, cmd)
}

// SuggestFromSelection returns the AI backend's raw text for a selection.
func (g *Gateway) SuggestFromSelection(ctx context.Context, cmd SuggestFromSelection) (string, error) {
	return executeText(ctx, g, cmd)
}

// RepoSummary fetches recent repository activity.
func (g *Gateway) RepoSummary(ctx context.Context, repo string) (*types.RepoSummary, error) {
	s, err := executeObject[types.RepoSummary](ctx, g, RepoSummary{Repo: repo})
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &types.RepoSummary{Repo: repo}
	}
	if s.Commits == nil {
		s.Commits = []types.Commit{}
	}
	if s.PullRequests == nil {
		s.PullRequests = []types.PullRequest{}
	}
	return s, nil
}

// CreatePullRequest opens a pull request.
func (g *Gateway) CreatePullRequest(ctx context.Context, cmd CreatePullRequest) (*types.PullRequest, error) {
	return executeObject[types.PullRequest](ctx, g, cmd)
}

// CommentPullRequest comments on a pull request.
func (g *Gateway) CommentPullRequest(ctx context.Context, cmd CommentPullRequest) error {
	_, err := g.Execute(ctx, cmd)
	return err
}

// MergePullRequest merges a pull request.
func (g *Gateway) MergePullRequest(ctx context.Context, cmd MergePullRequest) error {
	_, err := g.Execute(ctx, cmd)
	return err
}

func executeList[T any](ctx context.Context, g *Gateway, cmd Command) ([]T, error) {
	data, err := g.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return DecodeList[T](cmd.Kind(), data)
}

func executeObject[T any](ctx context.Context, g *Gateway, cmd Command) (*T, error) {
	data, err := g.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return DecodeObject[T](cmd.Kind(), data)
}

func executeSession(ctx context.Context, g *Gateway, cmd Command) (*types.Session, error) {
	s, err := executeObject[types.Session](ctx, g, cmd)
	if err != nil {
		return nil, err
	}
	if s == nil || s.User == nil {
		return nil, fmt.Errorf("%w: %s: response carries no user", transport.ErrProtocolViolation, cmd.Kind().ID())
	}
	return s, nil
}

func executeText(ctx context.Context, g *Gateway, cmd Command) (string, error) {
	data, err := g.Execute(ctx, cmd)
	if err != nil {
		return "", err
	}
	return DecodeText(cmd.Kind(), data)
}

// DecodeList decodes a collection result. Null or non-array data becomes an
// empty slice so callers never store a non-sequence.
func DecodeList[T any](k Kind, data json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode list: %v", transport.ErrProtocolViolation, k.ID(), err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// DecodeObject decodes a single-row result. Missing or null data yields nil.
func DecodeObject[T any](k Kind, data json.RawMessage) (*T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: decode result: %v", transport.ErrProtocolViolation, k.ID(), err)
	}
	return &out, nil
}

// DecodeText extracts AI text from a bare string or an object carrying it
// under "text" or "content".
func DecodeText(k Kind, data json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Text    *string `json:"text"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		if obj.Text != nil {
			return *obj.Text, nil
		}
		if obj.Content != nil {
			return *obj.Content, nil
		}
	}
	return "", fmt.Errorf("%w: %s: result is not text", transport.ErrProtocolViolation, k.ID())
}
