// Package workspace wires the client core together: one channel, the typed
// gateway over it, the entity store, both pollers, the mutation
// coordinator, the presence heartbeat and the AI bridge. It owns the
// sign-in and project lifecycle that activates and deactivates them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/leonletto/huddle/internal/ai"
	"github.com/leonletto/huddle/internal/config"
	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/poller"
	"github.com/leonletto/huddle/internal/presence"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/transport"
	"github.com/leonletto/huddle/internal/types"
)

// AssistantLabel is the sender label on assistant-authored chat lines.
const AssistantLabel = "Assistant"

// Option configures a Workspace.
type Option func(*options)

type options struct {
	cfg     *config.Config
	logger  *slog.Logger
	model   string
	closers []io.Closer
}

// WithConfig supplies timeouts, intervals and AI settings. Without it the
// package defaults apply.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithModel overrides the configured AI model, e.g. from preferences.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithCloser registers c to be closed by Close, after everything else
// has stopped.
func WithCloser(c io.Closer) Option {
	return func(o *options) {
		if c != nil {
			o.closers = append(o.closers, c)
		}
	}
}

// Workspace is one signed-in client session.
type Workspace struct {
	logger    *slog.Logger
	gateway   *gateway.Gateway
	store     *store.Store
	tasks     *poller.Poller[types.Task]
	messages  *poller.Poller[types.Message]
	coord     *optimistic.Coordinator
	feed      *presence.ActivityFeed
	heartbeat *presence.Heartbeat
	ai        *ai.Bridge
	closers   []io.Closer

	// runCtx outlives individual calls; pollers and the heartbeat run
	// under it until Close.
	runCtx context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a Workspace issuing commands over sender.
func New(sender gateway.Sender, opts ...Option) *Workspace {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default("")
	}
	model := cfg.AI.Model
	if o.model != "" {
		model = o.model
	}

	gw := gateway.New(sender, gateway.WithTimeouts(cfg.Timeouts.Default.Std(), cfg.Timeouts.Long.Std()))
	st := store.New()
	feed := presence.NewActivityFeed()
	runCtx, cancel := context.WithCancel(context.Background())

	w := &Workspace{
		logger:  o.logger,
		gateway: gw,
		store:   st,
		feed:    feed,
		closers: o.closers,
		runCtx:  runCtx,
		cancel:  cancel,
	}
	w.tasks = poller.New[types.Task]("tasks", gw.ListTasks, st.SetTasks,
		poller.WithInterval(cfg.Polling.Tasks.Std()), poller.WithLogger(o.logger))
	w.messages = poller.New[types.Message]("messages", gw.ListMessages, st.SetMessages,
		poller.WithInterval(cfg.Polling.Messages.Std()), poller.WithLogger(o.logger))
	w.coord = optimistic.New(st, gw, optimistic.WithLogger(o.logger))
	w.heartbeat = presence.New(gw, st, feed,
		presence.WithInterval(cfg.Presence.Heartbeat.Std()),
		presence.WithIdleAfter(cfg.Presence.IdleAfter.Std()),
		presence.WithLogger(o.logger))
	w.ai = ai.NewBridge(gw,
		ai.WithModel(model),
		ai.WithMaxTasks(cfg.AI.MaxTasks),
		ai.WithLogger(o.logger))
	return w
}

// Dial connects to the host named by cfg and returns a Workspace over it.
// The connection is closed by Workspace.Close.
func Dial(ctx context.Context, cfg *config.Config, opts ...Option) (*Workspace, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	kind, err := transport.ParseKind(cfg.Host.Transport)
	if err != nil {
		return nil, err
	}
	ch := transport.NewChannel(
		transport.WithDefaultTimeout(cfg.Timeouts.Default.Std()),
		transport.WithLogger(o.logger),
	)

	dialOpts := []transport.DialOption{transport.WithBridgeLogger(o.logger)}
	var tailnet *transport.TailnetDialer
	if cfg.Tailscale.Enabled && kind == transport.KindWebSocket {
		tailnet, err = transport.NewTailnetDialer(cfg.Tailscale)
		if err != nil {
			return nil, fmt.Errorf("tailnet: %w", err)
		}
		dialOpts = append(dialOpts, transport.WithNetDial(tailnet.DialContext))
	}

	endpoint := transport.Endpoint{Kind: kind, URL: cfg.Host.URL, SocketPath: cfg.Host.SocketPath}
	if _, err := transport.Connect(ctx, ch, endpoint, dialOpts...); err != nil {
		if tailnet != nil {
			_ = tailnet.Close()
		}
		return nil, err
	}
	o.logger.Debug("workspace: connected", "transport", kind, "url", cfg.Host.URL, "socket", cfg.Host.SocketPath)

	opts = append(opts, WithConfig(cfg), WithCloser(ch))
	if tailnet != nil {
		opts = append(opts, WithCloser(tailnet))
	}
	return New(ch, opts...), nil
}

// Store returns the entity store views read from.
func (w *Workspace) Store() *store.Store { return w.store }

// Gateway returns the typed command gateway.
func (w *Workspace) Gateway() *gateway.Gateway { return w.gateway }

// Coordinator returns the optimistic mutation coordinator.
func (w *Workspace) Coordinator() *optimistic.Coordinator { return w.coord }

// Heartbeat returns the presence heartbeat.
func (w *Workspace) Heartbeat() *presence.Heartbeat { return w.heartbeat }

// Activity returns the feed local input should be emitted on.
func (w *Workspace) Activity() *presence.ActivityFeed { return w.feed }

// AI returns the AI invocation bridge.
func (w *Workspace) AI() *ai.Bridge { return w.ai }

// User returns the signed-in user, or nil.
func (w *Workspace) User() *types.User { return w.store.User() }

// Project returns the open project, or nil.
func (w *Workspace) Project() *types.Project { return w.store.Project() }

// Close closes the project, stops every component and closes registered
// closers. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.CloseProject()
	w.heartbeat.Wait()
	w.cancel()

	var errs []error
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
