package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leonletto/huddle/internal/store"
	"github.com/leonletto/huddle/internal/types"
)

var alice = &types.User{UID: "usr_alice", DisplayName: "Alice"}

// fakeRemote serves task snapshots and records which projects were asked for.
type fakeRemote struct {
	mu       sync.Mutex
	tasks    map[string][]types.Task
	err      error
	calls    []string
	block    chan struct{}
	inFlight chan struct{}
}

func (f *fakeRemote) fetch(ctx context.Context, projectID string) ([]types.Task, error) {
	f.mu.Lock()
	f.calls = append(f.calls, projectID)
	block, inFlight := f.block, f.inFlight
	err := f.err
	rows := f.tasks[projectID]
	f.mu.Unlock()

	if inFlight != nil {
		inFlight <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) set(projectID string, rows []types.Task, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[projectID] = rows
	f.err = err
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

func newTaskPoller(remote *fakeRemote, s *store.Store, interval time.Duration) *Poller[types.Task] {
	return New("tasks", remote.fetch, s.SetTasks, WithInterval(interval))
}

func TestPoller_ActivateFetchesImmediately(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{
		"prj_1": {{ID: "tsk_1", Title: "Design", Status: types.TaskBacklog}},
	}}
	s := store.New()
	p := newTaskPoller(remote, s, time.Hour)

	active, err := p.Activate(context.Background(), "prj_1", alice)
	if err != nil || !active {
		t.Fatalf("Activate = %v, %v", active, err)
	}
	defer p.Deactivate()

	waitFor(t, func() bool { return len(s.Tasks()) == 1 }, "snapshot not applied")
	if got := s.Tasks()[0].ID; got != "tsk_1" {
		t.Errorf("task id = %q", got)
	}
}

func TestPoller_Precondition(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{}}
	p := newTaskPoller(remote, store.New(), time.Hour)

	for _, tc := range []struct {
		name      string
		projectID string
		user      *types.User
	}{
		{"no project", "", alice},
		{"no user", "prj_1", nil},
		{"empty uid", "prj_1", &types.User{}},
	} {
		active, err := p.Activate(context.Background(), tc.projectID, tc.user)
		if err != nil || active {
			t.Errorf("%s: Activate = %v, %v; want inactive", tc.name, active, err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	if remote.callCount() != 0 {
		t.Errorf("fetched %d times without a valid precondition", remote.callCount())
	}
}

func TestPoller_FailureKeepsPreviousSnapshot(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{
		"prj_1": {{ID: "tsk_1"}, {ID: "tsk_2"}},
	}}
	s := store.New()
	p := newTaskPoller(remote, s, 10*time.Millisecond)

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	defer p.Deactivate()
	waitFor(t, func() bool { return len(s.Tasks()) == 2 }, "first snapshot missing")

	remote.set("prj_1", nil, errors.New("host unreachable"))
	before := remote.callCount()
	waitFor(t, func() bool { return remote.callCount() >= before+3 }, "poller stopped after failure")

	if len(s.Tasks()) != 2 {
		t.Errorf("failed fetch replaced snapshot: %+v", s.Tasks())
	}
}

func TestPoller_ReplacesNotMerges(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{
		"prj_1": {{ID: "tsk_1"}},
	}}
	s := store.New()
	s.AddTask(types.Task{ID: "temp-1-abcdef", Title: "optimistic"})
	p := newTaskPoller(remote, s, time.Hour)

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	defer p.Deactivate()

	waitFor(t, func() bool {
		_, ok := s.Task("tsk_1")
		return ok
	}, "snapshot not applied")
	if _, ok := s.Task("temp-1-abcdef"); ok {
		t.Error("poll should replace the whole collection")
	}
}

func TestPoller_Idempotent(t *testing.T) {
	rows := []types.Task{{ID: "tsk_1", Title: "a"}, {ID: "tsk_2", Title: "b"}}
	remote := &fakeRemote{tasks: map[string][]types.Task{"prj_1": rows}}

	s := store.New()
	p := newTaskPoller(remote, s, time.Hour)
	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	defer p.Deactivate()
	waitFor(t, func() bool { return len(s.Tasks()) == 2 }, "snapshot not applied")
	once := s.Snapshot()

	p.Refresh()
	waitFor(t, func() bool { return remote.callCount() >= 2 }, "refresh did not fetch")
	p.Refresh()
	waitFor(t, func() bool { return remote.callCount() >= 3 }, "refresh did not fetch")

	if diff := cmp.Diff(once, s.Snapshot()); diff != "" {
		t.Errorf("repeated identical snapshots changed state:\n%s", diff)
	}
}

func TestPoller_DeactivateStopsFetching(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{}}
	p := newTaskPoller(remote, store.New(), 10*time.Millisecond)

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return remote.callCount() >= 2 }, "expected ticks")
	p.Deactivate()
	if p.Active() {
		t.Error("Active() after Deactivate")
	}

	time.Sleep(30 * time.Millisecond)
	n := remote.callCount()
	time.Sleep(50 * time.Millisecond)
	if remote.callCount() != n {
		t.Errorf("fetched after deactivation: %d -> %d", n, remote.callCount())
	}
	p.Refresh() // no-op while inactive
}

func TestPoller_StaleResultDiscarded(t *testing.T) {
	remote := &fakeRemote{
		tasks:    map[string][]types.Task{"prj_1": {{ID: "tsk_old"}}},
		block:    make(chan struct{}),
		inFlight: make(chan struct{}, 1),
	}
	s := store.New()
	p := newTaskPoller(remote, s, time.Hour)

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	<-remote.inFlight
	p.Deactivate()
	close(remote.block)

	time.Sleep(50 * time.Millisecond)
	if len(s.Tasks()) != 0 {
		t.Errorf("result of a deactivated poll was applied: %+v", s.Tasks())
	}
}

func TestPoller_SwitchProject(t *testing.T) {
	remote := &fakeRemote{tasks: map[string][]types.Task{
		"prj_1": {{ID: "tsk_a"}},
		"prj_2": {{ID: "tsk_b"}, {ID: "tsk_c"}},
	}}
	s := store.New()
	p := newTaskPoller(remote, s, time.Hour)
	defer p.Deactivate()

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(s.Tasks()) == 1 }, "prj_1 not applied")

	if _, err := p.Activate(context.Background(), "prj_1", alice); err != nil {
		t.Fatal(err)
	}
	if remote.callCount() != 1 {
		t.Errorf("re-activating the same project restarted the poller")
	}

	if _, err := p.Activate(context.Background(), "prj_2", alice); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(s.Tasks()) == 2 }, "prj_2 not applied")
}
