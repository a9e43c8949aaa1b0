// Package schedule provides a cancellable fixed-interval task with a single
// active timer.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Func is the work a Task runs on each tick.
type Func func(ctx context.Context)

// Task runs a Func immediately on Start and then every interval until
// Stop. Runs never overlap: a tick that fires while a run is in progress is
// coalesced into the next one.
type Task struct {
	name     string
	interval time.Duration
	fn       Func
	logger   *slog.Logger

	mu      sync.Mutex
	current *run
	last    *run
	trigger chan struct{}
	runs    int
	lastRun time.Time
}

type run struct {
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a stopped Task. A nil logger uses slog.Default.
func New(name string, interval time.Duration, fn Func, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		trigger:  make(chan struct{}, 1), // Buffered to avoid blocking
	}
}

// Start runs fn once right away and then on every tick. It returns an error
// if the task is already running.
func (t *Task) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", t.name, t.interval)
	}

	t.mu.Lock()
	if t.current != nil {
		t.mu.Unlock()
		return fmt.Errorf("%s: already running", t.name)
	}
	r := &run{
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	t.current = r
	t.last = r
	t.mu.Unlock()

	// A trigger queued while stopped is covered by the immediate run.
	select {
	case <-t.trigger:
	default:
	}

	t.logger.Debug("schedule: started", "task", t.name, "interval", t.interval)
	go t.loop(ctx, r)
	return nil
}

// Stop ends the current run loop. It does not wait for a run that is in
// progress; use Done for that. Stopping a stopped task is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	r := t.current
	t.current = nil
	t.mu.Unlock()

	if r == nil {
		return
	}
	close(r.stopCh)
	t.logger.Debug("schedule: stopped", "task", t.name)
}

// Done returns a channel closed once the most recently started loop has
// exited. For a task that never started, the channel is already closed.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.last.stoppedCh
}

// Trigger requests an extra run as soon as the loop is idle. It never
// blocks and coalesces with other pending triggers.
func (t *Task) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
		// Already a pending trigger
	}
}

// Running reports whether the task has been started and not stopped.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Status reports how many runs have completed and when the last one ended.
func (t *Task) Status() (runs int, lastRun time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs, t.lastRun
}

func (t *Task) loop(ctx context.Context, r *run) {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
		case <-t.trigger:
		}

		// Stop may have raced with the tick.
		select {
		case <-r.stopCh:
			return
		default:
		}
		t.runOnce(ctx)
	}
}

func (t *Task) runOnce(ctx context.Context) {
	t.fn(ctx)

	t.mu.Lock()
	t.runs++
	t.lastRun = time.Now()
	t.mu.Unlock()
}
