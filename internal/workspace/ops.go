package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leonletto/huddle/internal/ai"
	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/types"
)

func (w *Workspace) projectID() (string, error) {
	if w.store.User() == nil {
		return "", optimistic.ErrNotSignedIn
	}
	p := w.store.Project()
	if p == nil {
		return "", optimistic.ErrNoProject
	}
	return p.ID, nil
}

// Members lists the open project's members.
func (w *Workspace) Members(ctx context.Context) ([]types.Member, error) {
	pid, err := w.projectID()
	if err != nil {
		return nil, err
	}
	return w.gateway.ListMembers(ctx, pid)
}

// InviteMember adds email to the open project.
func (w *Workspace) InviteMember(ctx context.Context, email, role string) (*types.Member, error) {
	pid, err := w.projectID()
	if err != nil {
		return nil, err
	}
	return w.gateway.InviteMember(ctx, pid, email, role)
}

// RemoveMember removes userID from the open project.
func (w *Workspace) RemoveMember(ctx context.Context, userID string) error {
	pid, err := w.projectID()
	if err != nil {
		return err
	}
	return w.gateway.RemoveMember(ctx, pid, userID)
}

// CreateTask adds a card through the coordinator.
func (w *Workspace) CreateTask(ctx context.Context, in optimistic.NewTask) (types.Task, error) {
	return w.coord.CreateTask(ctx, in)
}

// MoveTask moves a card to status through the coordinator.
func (w *Workspace) MoveTask(ctx context.Context, id string, status types.TaskStatus) (types.Task, error) {
	return w.coord.MoveTask(ctx, id, status)
}

// AdvanceTask moves a card one column along the board.
func (w *Workspace) AdvanceTask(ctx context.Context, id string) (types.Task, error) {
	return w.coord.AdvanceTask(ctx, id)
}

// AssignTask sets or, with a nil assigneeID, clears a card's assignee.
func (w *Workspace) AssignTask(ctx context.Context, id string, assigneeID *string) (types.Task, error) {
	return w.coord.UpdateAssignee(ctx, id, assigneeID)
}

// SendMessage posts text as the signed-in user.
func (w *Workspace) SendMessage(ctx context.Context, text string) (types.Message, error) {
	return w.coord.SendMessage(ctx, text)
}

// RetryMessage resends a failed message.
func (w *Workspace) RetryMessage(ctx context.Context, id string) (types.Message, error) {
	return w.coord.RetryMessage(ctx, id)
}

// DiscardMessage drops a failed message.
func (w *Workspace) DiscardMessage(id string) error {
	return w.coord.DiscardMessage(id)
}

// PlanRequest describes a work-breakdown run.
type PlanRequest struct {
	Goal        string
	Constraints []string
	// Repo, when set as "owner/name", adds recent repository activity to
	// the prompt. A failed lookup only drops that context.
	Repo     string
	MaxTasks int
}

// PlanResult reports what a plan run produced. Created holds the tasks
// the host confirmed; Failed the candidates it refused.
type PlanResult struct {
	Breakdown ai.Breakdown
	Created   []types.Task
	Failed    []ai.Candidate
}

// PlanWork asks the AI for a breakdown toward req.Goal and creates every
// candidate as a task. Nothing is created when the AI call or its parse
// fails. Per-candidate failures are collected and returned joined.
func (w *Workspace) PlanWork(ctx context.Context, req PlanRequest) (PlanResult, error) {
	pid, err := w.projectID()
	if err != nil {
		return PlanResult{}, err
	}
	project := w.store.Project()

	in := ai.PromptInput{
		ProjectName: project.Name,
		Goal:        req.Goal,
		Tasks:       w.store.Tasks(),
		Chat:        w.store.Messages(),
		Constraints: req.Constraints,
		MaxTasks:    req.MaxTasks,
	}
	if req.Repo != "" {
		repo, err := w.gateway.RepoSummary(ctx, req.Repo)
		if err != nil {
			w.logger.Warn("workspace: repo summary unavailable", "repo", req.Repo, "error", err)
		} else {
			in.Repo = repo
		}
	}

	bd, err := w.ai.GenerateWorkBreakdown(ctx, pid, in)
	if err != nil {
		return PlanResult{}, err
	}

	assignees := w.assigneeResolver(ctx, bd.Tasks)
	res := PlanResult{Breakdown: bd, Created: []types.Task{}, Failed: []ai.Candidate{}}
	var errs []error
	for _, c := range bd.Tasks {
		t, err := w.coord.CreateTask(ctx, optimistic.NewTask{
			Title:      c.Title,
			Status:     c.Status,
			AssigneeID: assignees(c.SuggestedAssignee),
		})
		if err != nil {
			res.Failed = append(res.Failed, c)
			errs = append(errs, fmt.Errorf("create %q: %w", c.Title, err))
			continue
		}
		res.Created = append(res.Created, t)
	}
	w.logger.Info("workspace: planned work", "project_id", pid, "created", len(res.Created), "failed", len(res.Failed))
	return res, errors.Join(errs...)
}

// assigneeResolver maps a suggested assignee (email, display name or user
// id) to a member id. Members are only fetched when some candidate names
// one; unmatched names resolve to nil.
func (w *Workspace) assigneeResolver(ctx context.Context, candidates []ai.Candidate) func(string) *string {
	none := func(string) *string { return nil }
	wanted := false
	for _, c := range candidates {
		if c.SuggestedAssignee != "" {
			wanted = true
			break
		}
	}
	if !wanted {
		return none
	}
	members, err := w.Members(ctx)
	if err != nil {
		w.logger.Debug("workspace: members unavailable for assignment", "error", err)
		return none
	}
	return func(name string) *string {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name == "" {
			return nil
		}
		for _, m := range members {
			if strings.EqualFold(m.Email, name) || strings.EqualFold(m.DisplayName, name) || m.UserID == name {
				id := m.UserID
				return &id
			}
		}
		return nil
	}
}

// Ask sends selection and question to the AI and posts the answer to the
// chat as an assistant message.
func (w *Workspace) Ask(ctx context.Context, selection, question string) (types.Message, error) {
	pid, err := w.projectID()
	if err != nil {
		return types.Message{}, err
	}
	text, err := w.ai.Reply(ctx, ai.ReplyInput{
		ProjectID: pid,
		Selection: selection,
		Question:  question,
		Chat:      w.store.Messages(),
	})
	if err != nil {
		return types.Message{}, err
	}
	return w.coord.SendAs(ctx, text, types.SenderAssistant, AssistantLabel)
}
