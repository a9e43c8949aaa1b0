package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/types"
	"github.com/leonletto/huddle/internal/workspace"
)

func loginCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		signup   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the host",
		Long: `Signs in with email and password. Without --password the password
is prompted for (not echoed on a terminal) or read from stdin.

Examples:
  huddle login --email ada@example.com
  huddle login --signup --email ada@example.com --name Ada`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				if !cli.IsInteractive() && !flagQuiet {
					fmt.Fprintln(os.Stderr, "Reading password from stdin")
				}
				pw, err := cli.ReadPassword(os.Stdin, os.Stderr, "Password: ")
				if err != nil {
					return err
				}
				password = pw
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ws, err := e.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			var u *types.User
			if signup {
				u, err = ws.SignUp(ctx, email, password, name)
			} else {
				u, err = ws.SignIn(ctx, email, password)
			}
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(u)
			}
			if !flagQuiet {
				fmt.Printf("✓ Signed in as %s <%s>\n", u.DisplayName, u.Email)
				fmt.Print(cli.Hint("login", flagQuiet, flagJSON))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Display name for --signup")
	cmd.Flags().BoolVar(&signup, "signup", false, "Create the account first")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ws, err := e.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			if err := ws.SignOut(ctx); err != nil {
				return err
			}
			if err := cli.ClearCurrentProject(e.dir); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Println("✓ Signed out")
			}
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ws, err := e.dial(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			u, err := ws.RestoreSession(ctx)
			if err != nil {
				return err
			}
			var project *types.Project
			if p, err := e.currentProject(); err == nil {
				project = &p
			}

			if flagJSON {
				return printJSON(map[string]any{"user": u, "project": project})
			}
			fmt.Print(cli.FormatWhoami(u, project))
			return nil
		},
	}
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and select projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a project and select it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ws, err := e.signedIn(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			p, err := ws.CreateProject(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := cli.SaveCurrentProject(e.dir, p); err != nil {
				return err
			}

			if flagJSON {
				return printJSON(p)
			}
			if !flagQuiet {
				fmt.Printf("✓ Created project %s (%s)\n", p.Name, p.ID)
				fmt.Print(cli.Hint("project.create", flagQuiet, flagJSON))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use PROJECT_ID",
		Short: "Select the project later commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return useProject(cmd.Context(), args[0])
		},
	})

	return cmd
}

// useProject checks that the signed-in user can see id, then selects it.
func useProject(ctx context.Context, id string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ws, err := e.signedIn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	if _, err := ws.Gateway().ListMembers(ctx, id); err != nil {
		return fmt.Errorf("project %s: %w", id, err)
	}
	p := types.Project{ID: id}
	if prev, err := cli.LoadCurrentProject(e.dir); err == nil && prev.ID == id {
		p = prev
	}
	if err := cli.SaveCurrentProject(e.dir, p); err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Printf("✓ Using project %s\n", id)
	}
	return nil
}

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage who belongs to the project",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List project members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				members, err := ws.Members(cmd.Context())
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(members)
				}
				fmt.Print(cli.FormatMembers(members))
				return nil
			})
		},
	})

	var role string
	invite := &cobra.Command{
		Use:   "invite EMAIL",
		Short: "Add an existing account to the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				m, err := ws.InviteMember(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(m)
				}
				if !flagQuiet {
					fmt.Printf("✓ Invited %s as %s (%s)\n", m.Email, m.Role, m.UserID)
				}
				return nil
			})
		},
	}
	invite.Flags().StringVar(&role, "role", "", "Member role (default member)")
	cmd.AddCommand(invite)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove USER_ID",
		Short: "Remove a member from the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				if err := ws.RemoveMember(cmd.Context(), args[0]); err != nil {
					return err
				}
				if !flagQuiet {
					fmt.Printf("✓ Removed %s\n", args[0])
				}
				return nil
			})
		},
	})

	return cmd
}
