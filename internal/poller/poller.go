// Package poller keeps one store collection in step with the remote by
// fetching a full snapshot on a fixed interval and replacing the local copy.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leonletto/huddle/internal/schedule"
	"github.com/leonletto/huddle/internal/types"
)

// DefaultInterval is the fixed poll period for tasks and messages.
const DefaultInterval = 5 * time.Second

// Fetcher returns the authoritative snapshot of a collection for a project.
type Fetcher[T any] func(ctx context.Context, projectID string) ([]T, error)

// Applier replaces the local collection with a snapshot. It is called with
// the poller's lock held and must not call back into the Poller.
type Applier[T any] func([]T)

// Option configures a Poller.
type Option func(*options)

type options struct {
	interval time.Duration
	logger   *slog.Logger
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the logger used for swallowed fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Poller is a fetch-and-replace loop for one collection. Fetch failures are
// logged and otherwise ignored, leaving the previous snapshot in place.
type Poller[T any] struct {
	name     string
	fetch    Fetcher[T]
	apply    Applier[T]
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	projectID  string
	userID     string
	task       *schedule.Task
}

// New creates an inactive Poller.
func New[T any](name string, fetch Fetcher[T], apply Applier[T], opts ...Option) *Poller[T] {
	o := options{interval: DefaultInterval, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Poller[T]{
		name:     name,
		fetch:    fetch,
		apply:    apply,
		interval: o.interval,
		logger:   o.logger,
	}
}

// Activate starts polling projectID on behalf of user. Without a project id
// or a signed-in user, the poller is deactivated instead and Activate
// reports false. Re-activating for the same pair is a no-op.
func (p *Poller[T]) Activate(ctx context.Context, projectID string, user *types.User) (bool, error) {
	if projectID == "" || user == nil || user.UID == "" {
		p.Deactivate()
		return false, nil
	}

	p.mu.Lock()
	if p.task != nil && p.projectID == projectID && p.userID == user.UID {
		p.mu.Unlock()
		return true, nil
	}
	if p.task != nil {
		p.task.Stop()
	}
	p.generation++
	gen := p.generation
	p.projectID = projectID
	p.userID = user.UID
	task := schedule.New("poller:"+p.name, p.interval, func(ctx context.Context) {
		p.tick(ctx, gen, projectID)
	}, p.logger)
	p.task = task
	p.mu.Unlock()

	if err := task.Start(ctx); err != nil {
		p.Deactivate()
		return false, fmt.Errorf("start %s poller: %w", p.name, err)
	}
	p.logger.Debug("poller: activated", "collection", p.name, "project_id", projectID)
	return true, nil
}

// Deactivate cancels the timer. A fetch already in flight may finish but
// its result is discarded.
func (p *Poller[T]) Deactivate() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.generation++
	p.projectID = ""
	p.userID = ""
	p.mu.Unlock()

	if task != nil {
		task.Stop()
		p.logger.Debug("poller: deactivated", "collection", p.name)
	}
}

// Active reports whether the poller is running.
func (p *Poller[T]) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}

// Refresh asks for an immediate fetch. It is a no-op while inactive.
func (p *Poller[T]) Refresh() {
	p.mu.Lock()
	task := p.task
	p.mu.Unlock()
	if task != nil {
		task.Trigger()
	}
}

func (p *Poller[T]) tick(ctx context.Context, gen uint64, projectID string) {
	items, err := p.fetch(ctx, projectID)
	if err != nil {
		p.logger.Debug("poller: fetch failed", "collection", p.name, "project_id", projectID, "error", err)
		return
	}
	if items == nil {
		items = []T{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		p.logger.Debug("poller: discarding stale snapshot", "collection", p.name, "project_id", projectID)
		return
	}
	p.apply(items)
}
