package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonletto/huddle/internal/cli"
	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/presence"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/workspace"
)

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send TEXT",
		Short: "Post a message to the project chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				m, err := ws.SendMessage(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(m)
				}
				if !flagQuiet {
					fmt.Printf("✓ Sent %s\n", m.ID)
					fmt.Print(cli.Hint("send", flagQuiet, flagJSON))
				}
				return nil
			})
		},
	}
}

func messagesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show recent chat messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				msgs := ws.Store().Messages()
				if limit > 0 && len(msgs) > limit {
					msgs = msgs[len(msgs)-limit:]
				}
				if flagJSON {
					return printJSON(msgs)
				}
				fmt.Print(cli.FormatMessages(msgs, time.Now()))
				if len(msgs) == 0 {
					fmt.Print(cli.Hint("messages.empty", flagQuiet, flagJSON))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of messages to show (0 for all)")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the chat and board until interrupted",
		Long: `Keeps the project open: the board and chat are polled, presence is
reported while the terminal is used, and new messages and board changes are
printed as they arrive. Press Enter to mark yourself active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				return runWatch(cmd.Context(), ws)
			})
		},
	}
}

func runWatch(ctx context.Context, ws *workspace.Workspace) error {
	var (
		mu        sync.Mutex
		seen      = make(map[string]bool)
		boardSize = len(ws.Store().Tasks())
	)
	for _, m := range ws.Store().Messages() {
		seen[m.ID] = true
		fmt.Print(cli.FormatMessageLine(m))
	}

	unsubscribe := ws.Store().Subscribe(store.ListenerFunc(func(c store.Change) {
		mu.Lock()
		defer mu.Unlock()
		switch c.Collection {
		case store.CollectionMessages:
			for _, m := range ws.Store().Messages() {
				if seen[m.ID] || identity.IsTempID(m.ID) {
					continue
				}
				seen[m.ID] = true
				fmt.Print(cli.FormatMessageLine(m))
			}
		case store.CollectionTasks:
			if n := len(ws.Store().Tasks()); n != boardSize && !flagQuiet {
				fmt.Printf("-- board now has %d task(s)\n", n)
				boardSize = n
			}
		}
	}))
	defer unsubscribe()

	if cli.IsInteractive() {
		go watchKeys(ctx, ws.Activity())
	}

	<-ctx.Done()
	return nil
}

// watchKeys reports a key activity for every line typed on stdin.
func watchKeys(ctx context.Context, feed *presence.ActivityFeed) {
	lines := make(chan struct{})
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(lines)
				return
			}
			if n == 0 {
				continue
			}
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-lines:
			if !ok {
				return
			}
			feed.Emit(presence.ActivityKey)
		}
	}
}

func askCmd() *cobra.Command {
	var selection string

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask the assistant and post its answer to the chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(_ *env, ws *workspace.Workspace) error {
				m, err := ws.Ask(cmd.Context(), selection, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(m)
				}
				fmt.Print(cli.FormatMessageLine(m))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&selection, "selection", "", "Text the question is about")
	return cmd
}
