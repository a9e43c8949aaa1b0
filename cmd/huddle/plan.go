package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/workspace"
)

func planCmd() *cobra.Command {
	var (
		constraints []string
		repo        string
		maxTasks    int
	)

	cmd := &cobra.Command{
		Use:   "plan GOAL",
		Short: "Let the assistant break a goal into tasks on the board",
		Long: `Sends the goal, the current board and recent chat to the AI planner
and adds every proposed task to the board. Nothing is added when the
planner fails or answers with something that is not a task list.

Examples:
  huddle plan "ship the billing page"
  huddle plan "login, billing and search" --max 5
  huddle plan "harden the API" --github acme/api --constraint "no new services"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				res, err := ws.PlanWork(cmd.Context(), workspace.PlanRequest{
					Goal:        strings.Join(args, " "),
					Constraints: constraints,
					Repo:        repo,
					MaxTasks:    maxTasks,
				})
				if err != nil && len(res.Created) == 0 && len(res.Failed) == 0 {
					return err
				}

				if flagJSON {
					if jerr := printJSON(res); jerr != nil {
						return jerr
					}
				} else {
					failed := make([]string, 0, len(res.Failed))
					for _, c := range res.Failed {
						failed = append(failed, c.Title)
					}
					fmt.Print(cli.FormatPlan(res.Created, failed, res.Breakdown.Notes))
					fmt.Print(cli.Hint("plan", flagQuiet, flagJSON))
				}
				if len(res.Failed) > 0 {
					return errors.New("some proposed tasks could not be created")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&constraints, "constraint", nil, "Extra instruction for the planner (repeatable)")
	cmd.Flags().StringVar(&repo, "github", "", "owner/name of a repository to include as context")
	cmd.Flags().IntVar(&maxTasks, "max", 0, "Upper bound on proposed tasks (3-25)")
	return cmd
}
