// Package optimistic applies user mutations to the store immediately and
// then confirms them remotely, rolling back when the remote refuses.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/types"
)

var (
	// ErrNotSignedIn is returned when no user is signed in.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrNoProject is returned when no project is active.
	ErrNoProject = errors.New("no active project")

	// ErrUnknownEntity is returned when the target row is not in the store.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrLocalOnly is returned when updating a row that only exists locally.
	ErrLocalOnly = errors.New("entity has not been confirmed by the remote yet")

	// ErrNotRetryable is returned when retrying or discarding a message that
	// is not in the failed state.
	ErrNotRetryable = errors.New("message is not in the failed state")

	// ErrNoNextStatus is returned when advancing a task that is already done.
	ErrNoNextStatus = errors.New("task has no next status")
)

// Remote is the subset of the command gateway the coordinator confirms
// mutations through. *gateway.Gateway satisfies it.
type Remote interface {
	CreateTask(ctx context.Context, cmd gateway.CreateTask) (*types.Task, error)
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status types.TaskStatus) error
	UpdateTaskAssignee(ctx context.Context, projectID, taskID string, assigneeID *string) error
	SendMessage(ctx context.Context, cmd gateway.SendMessage) (*types.Message, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTempIDs sets the generator for local ids.
func WithTempIDs(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newTempID = fn
		}
	}
}

// Coordinator pairs each local mutation with its remote command. Every
// method blocks until the remote answers; the store reflects the optimistic
// state for the whole wait.
type Coordinator struct {
	store     *store.Store
	remote    Remote
	logger    *slog.Logger
	now       func() time.Time
	newTempID func() string
}

// New creates a Coordinator over s and r.
func New(s *store.Store, r Remote, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		remote:    r,
		logger:    slog.Default(),
		now:       time.Now,
		newTempID: identity.NewTempID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scope returns the signed-in user and active project.
func (c *Coordinator) scope() (*types.User, *types.Project, error) {
	user := c.store.User()
	if user == nil {
		return nil, nil, ErrNotSignedIn
	}
	project := c.store.Project()
	if project == nil {
		return nil, nil, ErrNoProject
	}
	return user, project, nil
}

// inScope reports whether the store still belongs to userID and
// projectID. A command that resolves after a sign-out or project switch
// must not touch the new scope.
func (c *Coordinator) inScope(userID, projectID string) bool {
	user, project := c.store.User(), c.store.Project()
	return user != nil && project != nil && user.UID == userID && project.ID == projectID
}

// lookupTask returns a task that is safe to update remotely.
func (c *Coordinator) lookupTask(id string) (types.Task, *types.Project, error) {
	_, project, err := c.scope()
	if err != nil {
		return types.Task{}, nil, err
	}
	if identity.IsTempID(id) {
		return types.Task{}, nil, fmt.Errorf("task %s: %w", id, ErrLocalOnly)
	}
	task, ok := c.store.Task(id)
	if !ok {
		return types.Task{}, nil, fmt.Errorf("task %s: %w", id, ErrUnknownEntity)
	}
	return task, project, nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
