package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/types"
	"github.com/leonletto/huddle/internal/workspace"
)

const defaultMessageLimit = 50

// handleListTasks lists the board from the store.
func (s *Server) handleListTasks(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input ListTasksInput,
) (*gomcp.CallToolResult, ListTasksOutput, error) {
	var filter types.TaskStatus
	if input.Status != "" {
		filter = types.TaskStatus(input.Status)
		if !filter.Valid() {
			return nil, ListTasksOutput{}, fmt.Errorf("invalid status %q: must be backlog, in_progress, or done", input.Status)
		}
	}
	if input.Refresh {
		if err := s.ws.Sync(ctx); err != nil {
			return nil, ListTasksOutput{}, fmt.Errorf("refresh: %w", err)
		}
	}

	tasks := make([]TaskInfo, 0)
	for _, t := range s.ws.Store().Tasks() {
		if filter != "" && t.Status != filter {
			continue
		}
		tasks = append(tasks, taskInfo(t))
	}
	return nil, ListTasksOutput{Tasks: tasks, Count: len(tasks)}, nil
}

// handleCreateTask adds a card.
func (s *Server) handleCreateTask(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input CreateTaskInput,
) (*gomcp.CallToolResult, TaskOutput, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, TaskOutput{}, fmt.Errorf("'title' is required")
	}
	in := optimistic.NewTask{Title: input.Title, Status: types.TaskStatus(input.Status)}
	if input.AssigneeID != "" {
		id := input.AssigneeID
		in.AssigneeID = &id
	}
	t, err := s.ws.CreateTask(ctx, in)
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("create task: %w", err)
	}
	return nil, TaskOutput{Task: taskInfo(t)}, nil
}

// handleMoveTask moves or advances a card.
func (s *Server) handleMoveTask(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input MoveTaskInput,
) (*gomcp.CallToolResult, TaskOutput, error) {
	if input.TaskID == "" {
		return nil, TaskOutput{}, fmt.Errorf("'task_id' is required")
	}

	var (
		t   types.Task
		err error
	)
	if input.Status == "" {
		t, err = s.ws.AdvanceTask(ctx, input.TaskID)
	} else {
		t, err = s.ws.MoveTask(ctx, input.TaskID, types.TaskStatus(input.Status))
	}
	if err != nil {
		return nil, TaskOutput{}, fmt.Errorf("move task: %w", err)
	}
	return nil, TaskOutput{Task: taskInfo(t)}, nil
}

// handleListMessages returns the tail of the chat feed.
func (s *Server) handleListMessages(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input ListMessagesInput,
) (*gomcp.CallToolResult, ListMessagesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	msgs := s.ws.Store().Messages()
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if len(msgs) == 0 {
		return nil, ListMessagesOutput{Status: "empty", Messages: []MessageInfo{}}, nil
	}

	out := make([]MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageInfo(m))
	}
	return nil, ListMessagesOutput{Status: "messages", Messages: out}, nil
}

// handleSendMessage posts as the assistant.
func (s *Server) handleSendMessage(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input SendMessageInput,
) (*gomcp.CallToolResult, SendMessageOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, SendMessageOutput{}, fmt.Errorf("'text' is required")
	}
	m, err := s.ws.Coordinator().SendAs(ctx, input.Text, types.SenderAssistant, s.agentName)
	if err != nil {
		return nil, SendMessageOutput{}, fmt.Errorf("send message: %w", err)
	}
	return nil, SendMessageOutput{Status: "delivered", MessageID: m.ID}, nil
}

// handlePlanWork runs the planner and creates its candidates.
func (s *Server) handlePlanWork(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input PlanWorkInput,
) (*gomcp.CallToolResult, PlanWorkOutput, error) {
	if strings.TrimSpace(input.Goal) == "" {
		return nil, PlanWorkOutput{}, fmt.Errorf("'goal' is required")
	}

	res, err := s.ws.PlanWork(ctx, workspace.PlanRequest{
		Goal:        input.Goal,
		Constraints: input.Constraints,
		Repo:        input.Repo,
		MaxTasks:    input.MaxTasks,
	})
	if err != nil && len(res.Created) == 0 {
		return nil, PlanWorkOutput{}, fmt.Errorf("plan work: %w", err)
	}
	if err != nil {
		s.logger.Warn("mcp: plan partially created", "created", len(res.Created), "failed", len(res.Failed), "error", err)
	}

	out := PlanWorkOutput{Created: make([]TaskInfo, 0, len(res.Created)), Notes: res.Breakdown.Notes}
	for _, t := range res.Created {
		out.Created = append(out.Created, taskInfo(t))
	}
	for _, c := range res.Failed {
		out.Failed = append(out.Failed, c.Title)
	}
	return nil, out, nil
}

// handleListPresence reports the presence rows the store holds.
func (s *Server) handleListPresence(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input ListPresenceInput,
) (*gomcp.CallToolResult, ListPresenceOutput, error) {
	rows := s.ws.Store().Presence()
	out := make([]PresenceInfo, 0, len(rows))
	for _, p := range rows {
		out = append(out, PresenceInfo{
			UserID:       p.UserID,
			Status:       string(p.Status),
			LastActiveAt: p.LastActiveAt.UTC().Format(time.RFC3339),
		})
	}
	return nil, ListPresenceOutput{Presence: out, Count: len(out)}, nil
}

func taskInfo(t types.Task) TaskInfo {
	info := TaskInfo{
		ID:        t.ID,
		Title:     t.Title,
		Status:    string(t.Status),
		UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
		Pending:   identity.IsTempID(t.ID),
	}
	if t.AssigneeID != nil {
		info.AssigneeID = *t.AssigneeID
	}
	return info
}

func messageInfo(m types.Message) MessageInfo {
	from := m.SenderLabel
	if from == "" {
		from = m.AuthorID
	}
	return MessageInfo{
		ID:        m.ID,
		From:      from,
		Sender:    string(m.Sender),
		Text:      m.Text,
		Status:    string(m.Status),
		Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
