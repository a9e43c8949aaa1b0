package main

import (
	"fmt"

	"github.com/spf13/cobra"

	huddlemcp "github.com/leonletto/huddle/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP stdio server on the selected project",
		Long: `Starts an MCP server on stdin/stdout so an AI agent can read and
change the board and chat of the selected project. Messages the agent
posts are marked as assistant messages.

Requires a signed-in session ('huddle login') and a selected project.

Configure in an MCP client:
  {
    "mcpServers": {
      "huddle": {
        "type": "stdio",
        "command": "huddle",
        "args": ["mcp", "--quiet"]
      }
    }
  }`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ws, err := e.signedIn(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			p, err := e.currentProject()
			if err != nil {
				return err
			}
			if err := ws.OpenProject(ctx, p); err != nil {
				return fmt.Errorf("open project %s: %w", p.ID, err)
			}

			server, err := huddlemcp.NewServer(ws,
				huddlemcp.WithVersion(Version),
				huddlemcp.WithAgentName(agentName),
			)
			if err != nil {
				return err
			}
			// Run blocks on stdio until the client disconnects.
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&agentName, "agent-name", "", "Sender label on agent messages (default Assistant)")
	return cmd
}
