package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	goruntime "runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/config"
	"github.com/leonletto/huddle/internal/paths"
	"github.com/leonletto/huddle/internal/prefs"
	"github.com/leonletto/huddle/internal/types"
	"github.com/leonletto/huddle/internal/workspace"
)

var (
	// Build info (set via ldflags).
	Version = "dev"
	Build   = "unknown"
)

var (
	// Global flags.
	flagRepo    string
	flagProject string
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "huddle",
		Short: "Shared task board and chat for small teams",
		Long: `Huddle keeps a project's task board and chat in sync between
everyone working on it, including an AI assistant.

The CLI talks to a huddle host over a websocket or a Unix socket. Run
'huddle devhost' for a local in-memory host.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", ".", "Directory to resolve .huddle/ from")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Project id (defaults to the one selected with 'project use')")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Debug output")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("huddle v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(newLogger())
		return nil
	}

	rootCmd.AddCommand(devhostCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(membersCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(messagesCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(mcpCmd())

	ctx, cancel := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case flagVerbose:
		level = slog.LevelDebug
	case flagQuiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// env is the resolved local state shared by commands.
type env struct {
	dir string
	cfg *config.Config
}

func loadEnv() (*env, error) {
	dir, err := paths.ResolveFrom(flagRepo)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return &env{dir: dir, cfg: cfg}, nil
}

// aiModel returns the saved model preference, or "" when none is stored.
func (e *env) aiModel(ctx context.Context) string {
	if _, err := os.Stat(paths.PrefsDBPath(e.dir)); err != nil {
		return ""
	}
	store, err := prefs.Open(ctx, paths.PrefsDBPath(e.dir))
	if err != nil {
		slog.Debug("cli: prefs unavailable", "error", err)
		return ""
	}
	defer func() { _ = store.Close() }()
	p, err := store.Load(ctx)
	if err != nil {
		slog.Debug("cli: prefs unavailable", "error", err)
		return ""
	}
	return p.AIModel
}

// dial connects to the host without touching the session.
func (e *env) dial(ctx context.Context) (*workspace.Workspace, error) {
	opts := []workspace.Option{workspace.WithLogger(slog.Default())}
	if model := e.aiModel(ctx); model != "" {
		opts = append(opts, workspace.WithModel(model))
	}
	ws, err := workspace.Dial(ctx, e.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to host %s: %w", e.hostLabel(), err)
	}
	return ws, nil
}

func (e *env) hostLabel() string {
	if e.cfg.Host.Transport == "unix" {
		return e.cfg.Host.SocketPath
	}
	return e.cfg.Host.URL
}

// signedIn dials and restores the host session.
func (e *env) signedIn(ctx context.Context) (*workspace.Workspace, error) {
	ws, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}
	u, err := ws.RestoreSession(ctx)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if u == nil {
		_ = ws.Close()
		return nil, errors.New("not signed in; run 'huddle login' first")
	}
	return ws, nil
}

// currentProject resolves --project or the saved selection.
func (e *env) currentProject() (types.Project, error) {
	if flagProject != "" {
		if p, err := cli.LoadCurrentProject(e.dir); err == nil && p.ID == flagProject {
			return p, nil
		}
		return types.Project{ID: flagProject}, nil
	}
	return cli.LoadCurrentProject(e.dir)
}

// withProject signs in, opens the current project, fetches both
// collections once and runs fn. The workspace is closed afterwards.
func withProject(ctx context.Context, fn func(*env, *workspace.Workspace) error) error {
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
	if err := ws.Sync(ctx); err != nil {
		return fmt.Errorf("load project %s: %w", p.ID, err)
	}
	return fn(e, ws)
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
