package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/transport"
	"github.com/leonletto/huddle/internal/types"
)

var alice = &types.User{UID: "usr_alice"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRemote struct {
	mu           sync.Mutex
	beats        []types.Presence
	subscribed   []string
	unsubscribed []string
	err          error
}

func (f *fakeRemote) UpsertPresence(_ context.Context, p types.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats = append(f.beats, p)
	return f.err
}

func (f *fakeRemote) Subscribe(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, projectID)
	return f.err
}

func (f *fakeRemote) Unsubscribe(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, projectID)
	return f.err
}

func (f *fakeRemote) beatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beats)
}

func (f *fakeRemote) lastBeat() types.Presence {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beats[len(f.beats)-1]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newHeartbeat(remote *fakeRemote, clock *fakeClock, feed *ActivityFeed) (*Heartbeat, *store.Store) {
	s := store.New()
	h := New(remote, s, feed,
		WithInterval(time.Hour),
		WithIdleAfter(60*time.Second),
		WithClock(clock.Now),
	)
	return h, s
}

func TestHeartbeat_ImmediateBeatOnline(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	h, s := newHeartbeat(remote, clock, NewActivityFeed())

	active, err := h.Activate(context.Background(), "prj_1", alice)
	if err != nil || !active {
		t.Fatalf("Activate = %v, %v", active, err)
	}
	defer h.Deactivate()

	waitFor(t, func() bool { return remote.beatCount() == 1 }, "no immediate beat")
	b := remote.lastBeat()
	if b.Status != types.PresenceOnline || b.UserID != alice.UID || b.ProjectID != "prj_1" {
		t.Errorf("beat = %+v", b)
	}
	if p, ok := s.PresenceOf(alice.UID); !ok || p.Status != types.PresenceOnline {
		t.Errorf("store presence = %+v, %v", p, ok)
	}
}

func TestHeartbeat_IdleDetection(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	feed := NewActivityFeed()
	h, _ := newHeartbeat(remote, clock, feed)

	if _, err := h.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	defer h.Deactivate()
	waitFor(t, func() bool { return remote.beatCount() == 1 }, "no immediate beat")

	// No input for 61 seconds.
	clock.Advance(61 * time.Second)
	if err := h.Beat(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := remote.lastBeat().Status; got != types.PresenceIdle {
		t.Fatalf("after 61s idle: status = %s, want idle", got)
	}

	// A keypress before the next tick brings the user back.
	clock.Advance(5 * time.Second)
	feed.Emit(ActivityKey)
	clock.Advance(25 * time.Second)
	if err := h.Beat(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := remote.lastBeat().Status; got != types.PresenceOnline {
		t.Fatalf("after keypress: status = %s, want online", got)
	}
}

func TestHeartbeat_ExactThresholdIsOnline(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	h, _ := newHeartbeat(remote, clock, nil)

	if _, err := h.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	defer h.Deactivate()

	clock.Advance(60 * time.Second)
	if got := h.Status(); got != types.PresenceOnline {
		t.Errorf("at exactly the threshold: %s, want online", got)
	}
}

func TestHeartbeat_DeactivateRemovesListenersAndUnsubscribes(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	feed := NewActivityFeed()
	h, _ := newHeartbeat(remote, clock, feed)

	if _, err := h.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	if feed.Listeners() != 1 {
		t.Fatalf("listeners = %d, want 1", feed.Listeners())
	}
	waitFor(t, func() bool { return remote.beatCount() == 1 }, "no immediate beat")

	h.Deactivate()
	h.Wait()

	if feed.Listeners() != 0 {
		t.Errorf("listeners after deactivate = %d", feed.Listeners())
	}
	if h.Active() {
		t.Error("Active() after Deactivate")
	}
	if err := h.Beat(context.Background()); err != nil {
		t.Fatal(err)
	}
	if remote.beatCount() != 1 {
		t.Errorf("beat sent while inactive")
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.subscribed) != 1 || remote.subscribed[0] != "prj_1" {
		t.Errorf("subscribed = %v", remote.subscribed)
	}
	if len(remote.unsubscribed) != 1 || remote.unsubscribed[0] != "prj_1" {
		t.Errorf("unsubscribed = %v", remote.unsubscribed)
	}
}

func TestHeartbeat_FailuresSwallowed(t *testing.T) {
	remote := &fakeRemote{err: transport.ErrTransportUnavailable}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	h, s := newHeartbeat(remote, clock, nil)

	active, err := h.Activate(context.Background(), "prj_1", alice)
	if err != nil || !active {
		t.Fatalf("failing remote should not fail activation: %v, %v", active, err)
	}
	defer h.Deactivate()

	waitFor(t, func() bool { return remote.beatCount() == 1 }, "no beat")
	if !errors.Is(h.Beat(context.Background()), transport.ErrTransportUnavailable) {
		t.Error("Beat should report the send error to direct callers")
	}
	if _, ok := s.PresenceOf(alice.UID); !ok {
		t.Error("local presence should be recorded even when the remote is down")
	}
}

func TestHeartbeat_Precondition(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Now()}
	h, _ := newHeartbeat(remote, clock, NewActivityFeed())

	if active, _ := h.Activate(context.Background(), "", alice); active {
		t.Error("activated without a project")
	}
	if active, _ := h.Activate(context.Background(), "prj_1", nil); active {
		t.Error("activated without a user")
	}
	h.Wait()
	if remote.beatCount() != 0 || len(remote.subscribed) != 0 {
		t.Error("inactive heartbeat talked to the remote")
	}
}

func TestHeartbeat_SwitchProject(t *testing.T) {
	remote := &fakeRemote{}
	clock := &fakeClock{now: time.Now()}
	feed := NewActivityFeed()
	h, _ := newHeartbeat(remote, clock, feed)
	ctx := context.Background()

	if _, err := h.Activate(ctx, "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Activate(ctx, "prj_2", alice); err != nil {
		t.Fatal(err)
	}
	defer h.Deactivate()
	h.Wait()

	if feed.Listeners() != 1 {
		t.Errorf("listeners = %d, want 1", feed.Listeners())
	}
	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.unsubscribed) != 1 || remote.unsubscribed[0] != "prj_1" {
		t.Errorf("unsubscribed = %v", remote.unsubscribed)
	}
	if len(remote.subscribed) != 2 {
		t.Errorf("subscribed = %v", remote.subscribed)
	}
}
