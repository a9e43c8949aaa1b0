package optimistic

import (
	"context"
	"fmt"

	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/types"
)

// NewTask is the input to CreateTask. An empty Status means backlog.
type NewTask struct {
	Title      string
	Status     types.TaskStatus
	AssigneeID *string
}

// CreateTask adds a local card and asks the remote to create it. The local
// card is removed either way; on success it is replaced by the row the
// remote returned, if any.
func (c *Coordinator) CreateTask(ctx context.Context, in NewTask) (types.Task, error) {
	user, project, err := c.scope()
	if err != nil {
		return types.Task{}, err
	}
	status := in.Status
	if status == "" {
		status = types.TaskBacklog
	}
	cmd := gateway.CreateTask{
		ProjectID:  project.ID,
		Title:      trimmed(in.Title),
		Status:     status,
		AssigneeID: in.AssigneeID,
		CreatedBy:  user.UID,
	}
	if err := cmd.Validate(); err != nil {
		return types.Task{}, err
	}

	now := c.now()
	local := types.Task{
		ID:         c.newTempID(),
		ProjectID:  project.ID,
		Title:      cmd.Title,
		Status:     status,
		AssigneeID: in.AssigneeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}.Clone()
	c.store.AddTask(local)

	created, err := c.remote.CreateTask(ctx, cmd)
	c.store.RemoveTask(local.ID)
	if err != nil {
		c.logger.Warn("optimistic: task create rolled back", "temp_id", local.ID, "error", err)
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}

	if created == nil || created.ID == "" || identity.IsTempID(created.ID) {
		return local, nil
	}
	if !c.inScope(cmd.CreatedBy, cmd.ProjectID) {
		c.logger.Debug("optimistic: created task left out of switched scope", "task_id", created.ID, "project_id", cmd.ProjectID)
		return created.Clone(), nil
	}
	if _, ok := c.store.Task(created.ID); !ok {
		c.store.AddTask(*created)
	}
	return created.Clone(), nil
}

// UpdateTaskStatus moves a task to status. On failure the status and
// updated timestamp revert, unless a poll has already replaced them.
func (c *Coordinator) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (types.Task, error) {
	if !status.Valid() {
		return types.Task{}, fmt.Errorf("%w: tasks.updateStatus: unknown status %q", gateway.ErrInvalidCommand, status)
	}
	prev, project, err := c.lookupTask(id)
	if err != nil {
		return types.Task{}, err
	}

	c.store.MoveTask(id, status)
	applied, _ := c.store.Task(id)

	if err := c.remote.UpdateTaskStatus(ctx, project.ID, id, status); err != nil {
		c.revertTask(id, applied, prev)
		c.logger.Warn("optimistic: status change rolled back", "task_id", id, "status", status, "error", err)
		return prev, fmt.Errorf("update task status: %w", err)
	}
	return applied, nil
}

// MoveTask is UpdateTaskStatus.
func (c *Coordinator) MoveTask(ctx context.Context, id string, status types.TaskStatus) (types.Task, error) {
	return c.UpdateTaskStatus(ctx, id, status)
}

// AdvanceTask moves a task one step along backlog, in_progress, done.
func (c *Coordinator) AdvanceTask(ctx context.Context, id string) (types.Task, error) {
	task, _, err := c.lookupTask(id)
	if err != nil {
		return types.Task{}, err
	}
	next, ok := task.Status.Next()
	if !ok {
		return task, fmt.Errorf("task %s is %s: %w", id, task.Status, ErrNoNextStatus)
	}
	return c.UpdateTaskStatus(ctx, id, next)
}

// UpdateAssignee sets a task's assignee; nil unassigns it.
func (c *Coordinator) UpdateAssignee(ctx context.Context, id string, assigneeID *string) (types.Task, error) {
	prev, project, err := c.lookupTask(id)
	if err != nil {
		return types.Task{}, err
	}

	now := c.now()
	patch := store.TaskPatch{AssigneeID: assigneeID, ClearAssignee: assigneeID == nil, UpdatedAt: &now}
	c.store.UpdateTask(id, patch)
	applied, _ := c.store.Task(id)

	if err := c.remote.UpdateTaskAssignee(ctx, project.ID, id, assigneeID); err != nil {
		c.revertTask(id, applied, prev)
		c.logger.Warn("optimistic: assignee change rolled back", "task_id", id, "error", err)
		return prev, fmt.Errorf("update task assignee: %w", err)
	}
	return applied, nil
}

// revertTask restores the fields of prev that still hold the optimistic
// value in applied. Fields a poll has replaced since are left alone.
func (c *Coordinator) revertTask(id string, applied, prev types.Task) {
	current, ok := c.store.Task(id)
	if !ok {
		return
	}

	var patch store.TaskPatch
	changed := false
	if current.Status == applied.Status && current.Status != prev.Status {
		s := prev.Status
		patch.Status = &s
		changed = true
	}
	if sameAssignee(current.AssigneeID, applied.AssigneeID) && !sameAssignee(current.AssigneeID, prev.AssigneeID) {
		if prev.AssigneeID == nil {
			patch.ClearAssignee = true
		} else {
			a := *prev.AssigneeID
			patch.AssigneeID = &a
		}
		changed = true
	}
	if current.UpdatedAt.Equal(applied.UpdatedAt) && !current.UpdatedAt.Equal(prev.UpdatedAt) {
		u := prev.UpdatedAt
		patch.UpdatedAt = &u
		changed = true
	}
	if changed {
		c.store.UpdateTask(id, patch)
	}
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
