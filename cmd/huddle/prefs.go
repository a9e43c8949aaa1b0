package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/paths"
	"github.com/leonletto/huddle/internal/prefs"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change local preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show all preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := prefs.Open(cmd.Context(), paths.PrefsDBPath(e.dir))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(p)
			}
			fmt.Print(cli.FormatPrefs(p))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one preference",
		Long: `Changes one preference. Keys:
  theme                      system, light or dark
  notifications.messages     true or false
  notifications.tasks        true or false
  notifications.mentions     true or false
  ai_model                   model name passed to the AI commands (empty for the host default)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := prefs.Open(cmd.Context(), paths.PrefsDBPath(e.dir))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.Set(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(p)
			}
			if !flagQuiet {
				v, _ := p.Get(args[0])
				fmt.Printf("✓ %s = %s\n", args[0], v)
			}
			return nil
		},
	})

	return cmd
}
