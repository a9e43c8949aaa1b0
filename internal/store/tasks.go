package store

import (
	"time"

	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/types"
)

// TaskPatch is a shallow merge applied by UpdateTask. Nil fields are left
// unchanged. ClearAssignee unsets the assignee and wins over AssigneeID.
type TaskPatch struct {
	Title         *string
	Status        *types.TaskStatus
	AssigneeID    *string
	ClearAssignee bool
	UpdatedAt     *time.Time
}

// PatchFrom returns the patch that restores every mutable field of t.
func PatchFrom(t types.Task) TaskPatch {
	title, status, updated := t.Title, t.Status, t.UpdatedAt
	p := TaskPatch{Title: &title, Status: &status, UpdatedAt: &updated}
	if t.AssigneeID == nil {
		p.ClearAssignee = true
	} else {
		a := *t.AssigneeID
		p.AssigneeID = &a
	}
	return p
}

// SetTasks replaces the task collection with a remote snapshot. A nil
// snapshot becomes empty. Rows carrying a local temp id are dropped since
// the remote can never own one.
func (s *Store) SetTasks(tasks []types.Task) {
	next := make([]types.Task, 0, len(tasks))
	for _, t := range tasks {
		if identity.IsTempID(t.ID) {
			continue
		}
		next = append(next, t.Clone())
	}

	s.mu.Lock()
	s.tasks = next
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionTasks, Op: "set"})
}

// Tasks returns a copy of the task collection.
func (s *Store) Tasks() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

// Task returns the task with id.
func (s *Store) Task(id string) (types.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.taskIndex(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return types.Task{}, false
}

// AddTask appends t.
func (s *Store) AddTask(t types.Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t.Clone())
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionTasks, Op: "add", ID: t.ID})
}

// RemoveTask deletes the task with id. It reports whether one existed.
func (s *Store) RemoveTask(id string) bool {
	s.mu.Lock()
	i := s.taskIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionTasks, Op: "remove", ID: id})
	return true
}

// UpdateTask merges p into the task with id. Unknown ids are a no-op.
func (s *Store) UpdateTask(id string, p TaskPatch) bool {
	s.mu.Lock()
	i := s.taskIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	t := &s.tasks[i]
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ClearAssignee {
		t.AssigneeID = nil
	} else if p.AssigneeID != nil {
		a := *p.AssigneeID
		t.AssigneeID = &a
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionTasks, Op: "update", ID: id})
	return true
}

// MoveTask sets the task's status and stamps a fresh updated timestamp.
func (s *Store) MoveTask(id string, status types.TaskStatus) bool {
	s.mu.Lock()
	i := s.taskIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks[i].Status = status
	s.tasks[i].UpdatedAt = s.now()
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionTasks, Op: "move", ID: id})
	return true
}

// taskIndex must be called with mu held.
func (s *Store) taskIndex(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
