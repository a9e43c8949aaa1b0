package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/types"
	"github.com/leonletto/huddle/internal/workspace"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with the project's task board",
	}

	var statusFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				tasks := ws.Store().Tasks()
				if statusFilter != "" {
					filtered := tasks[:0]
					for _, t := range tasks {
						if string(t.Status) == statusFilter {
							filtered = append(filtered, t)
						}
					}
					tasks = filtered
				}
				if flagJSON {
					return printJSON(tasks)
				}

				var names map[string]string
				if members, err := ws.Members(cmd.Context()); err == nil {
					names = cli.MemberNames(members)
				}
				fmt.Print(cli.FormatBoard(tasks, names))
				if len(tasks) == 0 {
					fmt.Print(cli.Hint("tasks.empty", flagQuiet, flagJSON))
				} else {
					fmt.Print(cli.Hint("tasks", flagQuiet, flagJSON))
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&statusFilter, "status", "", "Only show one column (backlog, in_progress, done)")
	cmd.AddCommand(list)

	var (
		addStatus   string
		addAssignee string
	)
	add := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				in := optimistic.NewTask{
					Title:  strings.Join(args, " "),
					Status: types.TaskStatus(addStatus),
				}
				if addAssignee != "" {
					in.AssigneeID = &addAssignee
				}
				t, err := ws.CreateTask(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printTask("Added", t)
			})
		},
	}
	add.Flags().StringVar(&addStatus, "status", "", "Initial column (default backlog)")
	add.Flags().StringVar(&addAssignee, "assignee", "", "Assignee user id")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "move TASK_ID STATUS",
		Short: "Move a card to a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				t, err := ws.MoveTask(cmd.Context(), args[0], types.TaskStatus(args[1]))
				if err != nil {
					return err
				}
				return printTask("Moved", t)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "advance TASK_ID",
		Short: "Move a card to the next column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				t, err := ws.AdvanceTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printTask("Moved", t)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "assign TASK_ID [USER_ID]",
		Short: "Set or, without USER_ID, clear a card's assignee",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				var assignee *string
				if len(args) == 2 {
					assignee = &args[1]
				}
				t, err := ws.AssignTask(cmd.Context(), args[0], assignee)
				if err != nil {
					return err
				}
				return printTask("Updated", t)
			})
		},
	})

	return cmd
}

func printTask(verb string, t types.Task) error {
	if flagJSON {
		return printJSON(t)
	}
	if !flagQuiet {
		fmt.Printf("✓ %s %s", verb, cli.FormatTask(t))
	}
	return nil
}
