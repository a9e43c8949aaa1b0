// Package mcp exposes an open workspace to AI agents as MCP tools. Agents
// read the board and chat and write through the same optimistic paths as
// people do; their chat lines carry the assistant sender kind.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leonletto/huddle/internal/workspace"
)

// Server is the Huddle MCP server.
type Server struct {
	ws        *workspace.Workspace
	agentName string
	version   string
	logger    *slog.Logger
	server    *gomcp.Server
}

// Option configures the MCP server.
type Option func(*Server)

// WithVersion sets the server version string.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithAgentName sets the sender label on messages the agent posts.
func WithAgentName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.agentName = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an MCP server over ws. ws must have a signed-in user
// and an open project.
func NewServer(ws *workspace.Workspace, opts ...Option) (*Server, error) {
	if ws == nil {
		return nil, errors.New("mcp: workspace is required")
	}
	if ws.User() == nil {
		return nil, errors.New("mcp: not signed in; run 'huddle login' first")
	}
	if ws.Project() == nil {
		return nil, errors.New("mcp: no project open; pass --project or run 'huddle project use'")
	}

	s := &Server{
		ws:        ws,
		agentName: workspace.AssistantLabel,
		version:   "dev",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "huddle",
			Version: s.version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdin/stdout until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List the cards on the project's task board, optionally filtered by column",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Add a card to the task board",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a card to another column, or advance it one column when no status is given",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_messages",
		Description: "Read the most recent lines of the project chat",
	}, s.handleListMessages)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "send_message",
		Description: "Post a line to the project chat as the assistant",
	}, s.handleSendMessage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "plan_work",
		Description: "Break a goal down into tasks with the AI planner and add them to the board",
	}, s.handlePlanWork)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_presence",
		Description: "Show who is online or idle in the project",
	}, s.handleListPresence)
}
