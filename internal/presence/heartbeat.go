// Package presence reports the local user's liveness on a fixed interval,
// deriving online or idle from local input activity.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leonletto/huddle/internal/schedule"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/types"
)

// Defaults for the heartbeat.
const (
	DefaultInterval  = 30 * time.Second
	DefaultIdleAfter = 60 * time.Second
)

// Remote is the subset of the command gateway the heartbeat uses.
// *gateway.Gateway satisfies it.
type Remote interface {
	UpsertPresence(ctx context.Context, p types.Presence) error
	Subscribe(ctx context.Context, projectID string) error
	Unsubscribe(ctx context.Context, projectID string) error
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(h *Heartbeat) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithIdleAfter overrides DefaultIdleAfter.
func WithIdleAfter(d time.Duration) Option {
	return func(h *Heartbeat) {
		if d > 0 {
			h.idleAfter = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Heartbeat) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Heartbeat) {
		if l != nil {
			h.logger = l
		}
	}
}

// Heartbeat reports presence for one (user, project) pair at a time.
// Every remote failure is logged and swallowed.
type Heartbeat struct {
	remote    Remote
	store     *store.Store
	feed      *ActivityFeed
	interval  time.Duration
	idleAfter time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu           sync.Mutex
	generation   uint64
	userID       string
	projectID    string
	lastActivity time.Time
	task         *schedule.Task
	stopListen   func()
	baseCtx      context.Context
	toggles      sync.WaitGroup
}

// New creates an inactive Heartbeat. feed may be nil when nothing reports
// input, in which case the user goes idle after the threshold.
func New(remote Remote, s *store.Store, feed *ActivityFeed, opts ...Option) *Heartbeat {
	h := &Heartbeat{
		remote:    remote,
		store:     s,
		feed:      feed,
		interval:  DefaultInterval,
		idleAfter: DefaultIdleAfter,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Activate starts reporting for user in projectID: it subscribes to the
// project, listens for input, beats once and then on every interval.
// Without a project or user it deactivates instead and reports false.
func (h *Heartbeat) Activate(ctx context.Context, projectID string, user *types.User) (bool, error) {
	if projectID == "" || user == nil || user.UID == "" {
		h.Deactivate()
		return false, nil
	}

	h.mu.Lock()
	if h.task != nil && h.projectID == projectID && h.userID == user.UID {
		h.mu.Unlock()
		return true, nil
	}
	h.mu.Unlock()
	h.Deactivate()

	h.mu.Lock()
	h.generation++
	gen := h.generation
	h.userID = user.UID
	h.projectID = projectID
	h.lastActivity = h.now()
	h.baseCtx = context.WithoutCancel(ctx)
	if h.feed != nil {
		h.stopListen = h.feed.Listen(func(Activity) { h.RecordActivity() })
	}
	task := schedule.New("presence", h.interval, func(ctx context.Context) {
		h.beat(ctx, gen)
	}, h.logger)
	h.task = task
	h.mu.Unlock()

	h.toggle(projectID, true)

	if err := task.Start(ctx); err != nil {
		h.Deactivate()
		return false, fmt.Errorf("start heartbeat: %w", err)
	}
	h.logger.Debug("presence: activated", "project_id", projectID, "user_id", user.UID)
	return true, nil
}

// Deactivate stops the timer, removes input listeners and unsubscribes
// from the project.
func (h *Heartbeat) Deactivate() {
	h.mu.Lock()
	task := h.task
	stop := h.stopListen
	projectID := h.projectID
	h.task = nil
	h.stopListen = nil
	h.generation++
	h.userID = ""
	h.projectID = ""
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	if task == nil {
		return
	}
	task.Stop()
	h.toggle(projectID, false)
	h.logger.Debug("presence: deactivated", "project_id", projectID)
}

// Active reports whether a pair is being reported.
func (h *Heartbeat) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task != nil
}

// RecordActivity marks the user active now.
func (h *Heartbeat) RecordActivity() {
	h.mu.Lock()
	h.lastActivity = h.now()
	h.mu.Unlock()
}

// Status returns what the next beat would report.
func (h *Heartbeat) Status() types.PresenceStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

func (h *Heartbeat) statusLocked() types.PresenceStatus {
	if h.now().Sub(h.lastActivity) > h.idleAfter {
		return types.PresenceIdle
	}
	return types.PresenceOnline
}

// Beat sends one presence report right away. It returns the send error,
// which the scheduled loop only logs.
func (h *Heartbeat) Beat(ctx context.Context) error {
	h.mu.Lock()
	gen := h.generation
	active := h.task != nil
	h.mu.Unlock()
	if !active {
		return nil
	}
	return h.beat(ctx, gen)
}

func (h *Heartbeat) beat(ctx context.Context, gen uint64) error {
	h.mu.Lock()
	if gen != h.generation {
		h.mu.Unlock()
		return nil
	}
	p := types.Presence{
		UserID:       h.userID,
		ProjectID:    h.projectID,
		Status:       h.statusLocked(),
		LastActiveAt: h.lastActivity,
	}
	h.mu.Unlock()

	h.store.UpsertPresence(p)

	if err := h.remote.UpsertPresence(ctx, p); err != nil {
		h.logger.Debug("presence: heartbeat failed", "project_id", p.ProjectID, "status", p.Status, "error", err)
		return err
	}
	return nil
}

// toggle issues the advisory subscribe or unsubscribe in the background.
func (h *Heartbeat) toggle(projectID string, subscribe bool) {
	h.mu.Lock()
	ctx := h.baseCtx
	h.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	h.toggles.Add(1)
	go func() {
		defer h.toggles.Done()
		var err error
		if subscribe {
			err = h.remote.Subscribe(ctx, projectID)
		} else {
			err = h.remote.Unsubscribe(ctx, projectID)
		}
		if err != nil {
			h.logger.Debug("presence: subscription toggle failed", "project_id", projectID, "subscribe", subscribe, "error", err)
		}
	}()
}

// Wait blocks until background subscription toggles have finished.
func (h *Heartbeat) Wait() {
	h.toggles.Wait()
}
