// Package devhost is an in-memory host for the remote command catalog. It
// keeps one global session and serves the bridge wire format over a
// WebSocket endpoint and, optionally, a Unix socket.
package devhost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/types"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("github integration is not configured")
)

// DefaultSessionTTL is how long a sign-in is reported as valid.
const DefaultSessionTTL = 24 * time.Hour

type account struct {
	user     types.User
	password string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithBackendClock sets the time source for row timestamps.
func WithBackendClock(now func() time.Time) BackendOption {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithAccount seeds a registered account.
func WithAccount(email, password, displayName string) BackendOption {
	return func(b *Backend) {
		b.accounts[normalizeEmail(email)] = &account{
			user: types.User{
				UID:         identity.GenerateUserID(),
				DisplayName: displayOr(displayName, email),
				Email:       email,
			},
			password: password,
		}
	}
}

// Backend executes catalog commands against in-memory state.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	planner  Planner
	accounts map[string]*account
	session  *types.User
	expires  time.Time

	projects    map[string]types.Project
	members     map[string][]types.Member
	tasks       map[string][]types.Task
	messages    map[string][]types.Message
	presence    map[string]map[string]types.Presence
	subscribers map[string]int
}

// NewBackend creates an empty Backend.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		now:         time.Now,
		accounts:    make(map[string]*account),
		projects:    make(map[string]types.Project),
		members:     make(map[string][]types.Member),
		tasks:       make(map[string][]types.Task),
		messages:    make(map[string][]types.Message),
		presence:    make(map[string]map[string]types.Presence),
		subscribers: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute decodes args for commandID, validates them and runs the command.
func (b *Backend) Execute(ctx context.Context, commandID string, args json.RawMessage) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, ok := gateway.KindFromID(commandID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, commandID)
	}
	cmd, ok := gateway.NewCommand(k)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, commandID)
	}
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, cmd); err != nil {
			return nil, fmt.Errorf("decode %s args: %w", commandID, err)
		}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch c := cmd.(type) {
	case *gateway.SignUp:
		return b.signUp(c)
	case *gateway.SignIn:
		return b.signIn(c)
	case *gateway.SignOut:
		b.session = nil
		return nil, nil
	case *gateway.GetSession:
		if b.session == nil {
			return nil, nil
		}
		return b.currentSession(), nil
	case *gateway.GetUser:
		if b.session == nil {
			return nil, ErrNotSignedIn
		}
		return *b.session, nil
	case *gateway.GenerateWorkBreakdown:
		return b.planner.Breakdown(c.Prompt), nil
	case *gateway.SuggestFromSelection:
		return b.planner.Reply(c.Selection, c.Prompt), nil
	case *gateway.RepoSummary, *gateway.CreatePullRequest, *gateway.CommentPullRequest, *gateway.MergePullRequest:
		return nil, ErrNotConfigured
	}

	if b.session == nil {
		return nil, ErrNotSignedIn
	}

	switch c := cmd.(type) {
	case *gateway.CreateProject:
		return b.createProject(c), nil
	case *gateway.InviteMember:
		return b.inviteMember(c)
	case *gateway.RemoveMember:
		return nil, b.removeMember(c)
	case *gateway.ListMembers:
		if err := b.requireProject(c.ProjectID); err != nil {
			return nil, err
		}
		return slices.Clone(b.members[c.ProjectID]), nil
	case *gateway.ListTasks:
		return b.listTasks(c.ProjectID)
	case *gateway.CreateTask:
		return b.createTask(c)
	case *gateway.UpdateTaskStatus:
		return b.updateTask(c.ProjectID, c.TaskID, func(t *types.Task) { t.Status = c.Status })
	case *gateway.UpdateTaskAssignee:
		assignee := c.AssigneeID
		return b.updateTask(c.ProjectID, c.TaskID, func(t *types.Task) { t.AssigneeID = cloneString(assignee) })
	case *gateway.ListMessages:
		return b.listMessages(c)
	case *gateway.SendMessage:
		return b.sendMessage(c)
	case *gateway.UpsertPresence:
		return b.upsertPresence(c)
	case *gateway.Subscribe:
		if err := b.requireProject(c.ProjectID); err != nil {
			return nil, err
		}
		b.subscribers[c.ProjectID]++
		return nil, nil
	case *gateway.Unsubscribe:
		if b.subscribers[c.ProjectID] > 0 {
			b.subscribers[c.ProjectID]--
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, commandID)
	}
}

func (b *Backend) signUp(c *gateway.SignUp) (types.Session, error) {
	key := normalizeEmail(c.Email)
	if _, exists := b.accounts[key]; exists {
		return types.Session{}, fmt.Errorf("account %s already exists", c.Email)
	}
	acct := &account{
		user: types.User{
			UID:         identity.GenerateUserID(),
			DisplayName: displayOr(c.DisplayName, c.Email),
			Email:       strings.TrimSpace(c.Email),
		},
		password: c.Password,
	}
	b.accounts[key] = acct
	b.startSession(acct.user)
	return b.currentSession(), nil
}

func (b *Backend) signIn(c *gateway.SignIn) (types.Session, error) {
	acct, ok := b.accounts[normalizeEmail(c.Email)]
	if !ok || acct.password != c.Password {
		return types.Session{}, errors.New("invalid email or password")
	}
	b.startSession(acct.user)
	return b.currentSession(), nil
}

func (b *Backend) startSession(u types.User) {
	b.session = &u
	b.expires = b.now().Add(DefaultSessionTTL).UTC()
}

func (b *Backend) currentSession() types.Session {
	u := *b.session
	return types.Session{User: &u, ExpiresAt: b.expires}
}

func (b *Backend) createProject(c *gateway.CreateProject) types.Project {
	p := types.Project{
		ID:        identity.GenerateProjectID(),
		Name:      strings.TrimSpace(c.Name),
		CreatedAt: b.now().UTC(),
		CreatedBy: b.session.UID,
	}
	b.projects[p.ID] = p
	b.members[p.ID] = []types.Member{{
		ProjectID:   p.ID,
		UserID:      b.session.UID,
		Email:       b.session.Email,
		DisplayName: b.session.DisplayName,
		Role:        "owner",
	}}
	return p
}

func (b *Backend) inviteMember(c *gateway.InviteMember) (types.Member, error) {
	if err := b.requireProject(c.ProjectID); err != nil {
		return types.Member{}, err
	}
	acct, ok := b.accounts[normalizeEmail(c.Email)]
	if !ok {
		return types.Member{}, fmt.Errorf("%w: no account for %s", ErrNotFound, c.Email)
	}
	for _, m := range b.members[c.ProjectID] {
		if m.UserID == acct.user.UID {
			return m, nil
		}
	}
	m := types.Member{
		ProjectID:   c.ProjectID,
		UserID:      acct.user.UID,
		Email:       acct.user.Email,
		DisplayName: acct.user.DisplayName,
		Role:        c.Role,
	}
	if m.Role == "" {
		m.Role = "member"
	}
	b.members[c.ProjectID] = append(b.members[c.ProjectID], m)
	return m, nil
}

func (b *Backend) removeMember(c *gateway.RemoveMember) error {
	if err := b.requireProject(c.ProjectID); err != nil {
		return err
	}
	members := b.members[c.ProjectID]
	i := slices.IndexFunc(members, func(m types.Member) bool { return m.UserID == c.UserID })
	if i < 0 {
		return fmt.Errorf("%w: member %s", ErrNotFound, c.UserID)
	}
	if members[i].Role == "owner" {
		return errors.New("the project owner cannot be removed")
	}
	b.members[c.ProjectID] = slices.Delete(members, i, i+1)
	return nil
}

func (b *Backend) listTasks(projectID string) ([]types.Task, error) {
	if err := b.requireProject(projectID); err != nil {
		return nil, err
	}
	out := make([]types.Task, 0, len(b.tasks[projectID]))
	for _, t := range b.tasks[projectID] {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (b *Backend) createTask(c *gateway.CreateTask) (types.Task, error) {
	if err := b.requireProject(c.ProjectID); err != nil {
		return types.Task{}, err
	}
	now := b.now().UTC()
	t := types.Task{
		ID:         identity.GenerateTaskID(),
		ProjectID:  c.ProjectID,
		Title:      strings.TrimSpace(c.Title),
		Status:     c.Status,
		AssigneeID: cloneString(c.AssigneeID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.tasks[c.ProjectID] = append(b.tasks[c.ProjectID], t)
	return t.Clone(), nil
}

// updateTask applies fn to the task with id taskID. An empty projectID
// searches every project.
func (b *Backend) updateTask(projectID, taskID string, fn func(*types.Task)) (types.Task, error) {
	for pid, tasks := range b.tasks {
		if projectID != "" && pid != projectID {
			continue
		}
		for i := range tasks {
			if tasks[i].ID != taskID {
				continue
			}
			fn(&tasks[i])
			tasks[i].UpdatedAt = b.now().UTC()
			return tasks[i].Clone(), nil
		}
	}
	return types.Task{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
}

func (b *Backend) listMessages(c *gateway.ListMessages) ([]types.Message, error) {
	if err := b.requireProject(c.ProjectID); err != nil {
		return nil, err
	}
	msgs := b.messages[c.ProjectID]
	if c.Limit > 0 && len(msgs) > c.Limit {
		msgs = msgs[len(msgs)-c.Limit:]
	}
	return append([]types.Message{}, msgs...), nil
}

func (b *Backend) sendMessage(c *gateway.SendMessage) (types.Message, error) {
	if err := b.requireProject(c.ProjectID); err != nil {
		return types.Message{}, err
	}
	m := types.Message{
		ID:          identity.GenerateMessageID(),
		ProjectID:   c.ProjectID,
		Text:        c.Text,
		AuthorID:    c.AuthorID,
		Sender:      c.Sender,
		SenderLabel: c.SenderLabel,
		CreatedAt:   b.now().UTC(),
	}
	if m.AuthorID == "" {
		m.AuthorID = b.session.UID
	}
	b.messages[c.ProjectID] = append(b.messages[c.ProjectID], m)
	return m, nil
}

func (b *Backend) upsertPresence(c *gateway.UpsertPresence) (types.Presence, error) {
	if err := b.requireProject(c.ProjectID); err != nil {
		return types.Presence{}, err
	}
	p := types.Presence{
		UserID:       c.UserID,
		ProjectID:    c.ProjectID,
		Status:       c.Status,
		LastActiveAt: c.LastActiveAt,
	}
	if b.presence[c.ProjectID] == nil {
		b.presence[c.ProjectID] = make(map[string]types.Presence)
	}
	b.presence[c.ProjectID][c.UserID] = p
	return p, nil
}

func (b *Backend) requireProject(projectID string) error {
	if _, ok := b.projects[projectID]; !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	return nil
}

// Presence returns the presence rows reported for projectID, ordered by
// user id.
func (b *Backend) Presence(projectID string) []types.Presence {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Presence, 0, len(b.presence[projectID]))
	for _, p := range b.presence[projectID] {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, c types.Presence) int { return strings.Compare(a.UserID, c.UserID) })
	return out
}

// Subscribers returns the number of active subscriptions to projectID.
func (b *Backend) Subscribers(projectID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers[projectID]
}

// Tasks returns a copy of projectID's board.
func (b *Backend) Tasks(projectID string) []types.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Task, 0, len(b.tasks[projectID]))
	for _, t := range b.tasks[projectID] {
		out = append(out, t.Clone())
	}
	return out
}

// Messages returns a copy of projectID's chat feed.
func (b *Backend) Messages(projectID string) []types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Message{}, b.messages[projectID]...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayOr(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return local
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
