package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/devhost"
	"github.com/leonletto/huddle/internal/paths"
)

func devhostCmd() *cobra.Command {
	var (
		addr     string
		socket   bool
		accounts []string
		rps      float64
		burst    int
	)

	cmd := &cobra.Command{
		Use:   "devhost",
		Short: "Run an in-memory huddle host for local development",
		Long: `Runs a huddle host that keeps everything in memory. It speaks the
same bridge protocol as a real host on ws://ADDR/bridge and, with --socket,
on a Unix socket under .huddle/var/.

AI commands are answered by a deterministic offline planner. GitHub
commands report that the integration is not configured.

Examples:
  huddle devhost
  huddle devhost --addr 127.0.0.1:9900 --socket
  huddle devhost --account ada@example.com:secret:Ada`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []devhost.BackendOption
			for _, a := range accounts {
				parts := strings.SplitN(a, ":", 3)
				if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
					return fmt.Errorf("invalid --account %q: want email:password[:display name]", a)
				}
				display := ""
				if len(parts) == 3 {
					display = parts[2]
				}
				opts = append(opts, devhost.WithAccount(parts[0], parts[1], display))
			}
			backend := devhost.NewBackend(opts...)

			serverOpts := []devhost.Option{
				devhost.WithLogger(slog.Default()),
				devhost.WithRateLimit(devhost.RateLimitConfig{RequestsPerSecond: rps, Burst: burst}),
			}
			if socket {
				e, err := loadEnv()
				if err != nil {
					return err
				}
				serverOpts = append(serverOpts, devhost.WithSocketPath(paths.HostSocketPath(e.dir)))
			}

			ctx := cmd.Context()
			srv := devhost.NewServer(addr, backend, serverOpts...)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = srv.Stop() }()

			if !flagQuiet {
				fmt.Printf("✓ Dev host listening on %s\n", srv.URL())
				if p := srv.SocketPath(); p != "" {
					fmt.Printf("  Unix socket: %s\n", p)
				}
				fmt.Println("  Press Ctrl-C to stop")
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9870", "TCP address for the websocket bridge")
	cmd.Flags().BoolVar(&socket, "socket", false, "Also listen on .huddle/var/host.sock")
	cmd.Flags().Float64Var(&rps, "rate-limit", 50, "Commands per second allowed per connection (0 disables)")
	cmd.Flags().IntVar(&burst, "burst", 100, "Burst size for --rate-limit")
	cmd.Flags().StringArrayVar(&accounts, "account", nil, "Pre-seeded account as email:password[:display name] (repeatable)")
	return cmd
}
