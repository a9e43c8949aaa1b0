package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/leonletto/huddle/internal/config"
	"github.com/leonletto/huddle/internal/devhost"
	"github.com/leonletto/huddle/internal/gateway"
	"github.com/leonletto/huddle/internal/optimistic"
	"github.com/leonletto/huddle/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	backend *devhost.Backend
	server  *devhost.Server
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := devhost.NewBackend(
		devhost.WithAccount("ada@example.com", "secret", "Ada"),
		devhost.WithAccount("bob@example.com", "secret", "Bob"),
	)
	srv := devhost.NewServer("127.0.0.1:0", b, devhost.WithLogger(quietLogger()))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })

	cfg := config.Default(t.TempDir())
	cfg.Host.URL = srv.URL()
	cfg.Timeouts.Default = config.Duration(5 * time.Second)
	cfg.Timeouts.Long = config.Duration(5 * time.Second)
	cfg.Polling.Tasks = config.Duration(20 * time.Millisecond)
	cfg.Polling.Messages = config.Duration(20 * time.Millisecond)
	cfg.Presence.Heartbeat = config.Duration(20 * time.Millisecond)
	return &harness{backend: b, server: srv, cfg: cfg}
}

func (h *harness) dial(t *testing.T) *Workspace {
	t.Helper()
	w, err := Dial(context.Background(), h.cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// open signs in as ada and opens a fresh project.
func (h *harness) open(t *testing.T, w *Workspace) types.Project {
	t.Helper()
	ctx := context.Background()
	if _, err := w.SignIn(ctx, "ada@example.com", "secret"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	p, err := w.CreateProject(ctx, "Launch")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := w.OpenProject(ctx, p); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	return p
}

func (h *harness) remoteTask(t *testing.T, projectID, title string) {
	t.Helper()
	args, _ := json.Marshal(gateway.CreateTask{ProjectID: projectID, Title: title, Status: types.TaskBacklog})
	if _, err := h.backend.Execute(context.Background(), "tasks.create", args); err != nil {
		t.Fatalf("remote create: %v", err)
	}
}

func TestWorkspace_OpenProjectStartsPollingAndPresence(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	p := h.open(t, w)

	if !w.Live() {
		t.Fatal("Live = false after OpenProject")
	}

	h.remoteTask(t, p.ID, "Written elsewhere")
	waitFor(t, "polled task", func() bool {
		tasks := w.Store().Tasks()
		return len(tasks) == 1 && tasks[0].Title == "Written elsewhere"
	})

	waitFor(t, "presence row", func() bool {
		rows := h.backend.Presence(p.ID)
		return len(rows) == 1 && rows[0].UserID == w.User().UID && rows[0].Status == types.PresenceOnline
	})
	waitFor(t, "subscription", func() bool { return h.backend.Subscribers(p.ID) == 1 })

	w.CloseProject()
	w.Heartbeat().Wait()
	if w.Live() {
		t.Error("Live = true after CloseProject")
	}
	if w.Project() != nil || len(w.Store().Tasks()) != 0 {
		t.Errorf("store not cleared: project=%v tasks=%v", w.Project(), w.Store().Tasks())
	}
	if n := h.backend.Subscribers(p.ID); n != 0 {
		t.Errorf("Subscribers after close = %d, want 0", n)
	}
}

func TestWorkspace_RequiresSignIn(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	ctx := context.Background()

	if _, err := w.CreateProject(ctx, "x"); !errors.Is(err, optimistic.ErrNotSignedIn) {
		t.Errorf("CreateProject = %v, want ErrNotSignedIn", err)
	}
	if err := w.OpenProject(ctx, types.Project{ID: "prj_x"}); !errors.Is(err, optimistic.ErrNotSignedIn) {
		t.Errorf("OpenProject = %v, want ErrNotSignedIn", err)
	}
	if _, err := w.PlanWork(ctx, PlanRequest{Goal: "x"}); !errors.Is(err, optimistic.ErrNotSignedIn) {
		t.Errorf("PlanWork = %v, want ErrNotSignedIn", err)
	}
	if w.Live() {
		t.Error("Live without a project")
	}
}

func TestWorkspace_RestoreAndSignOut(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t)
	ctx := context.Background()
	if _, err := first.SignIn(ctx, "ada@example.com", "secret"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	second := h.dial(t)
	u, err := second.RestoreSession(ctx)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if u == nil || u.Email != "ada@example.com" {
		t.Fatalf("restored user = %+v", u)
	}

	if err := second.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if second.User() != nil {
		t.Error("User after SignOut is not nil")
	}
	u, err = first.RestoreSession(ctx)
	if err != nil || u != nil {
		t.Errorf("RestoreSession after sign-out = %v, %v; want nil, nil", u, err)
	}
}

func TestWorkspace_TaskAndMessageRoundTrip(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	p := h.open(t, w)
	ctx := context.Background()

	task, err := w.CreateTask(ctx, optimistic.NewTask{Title: "Draft"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := w.AdvanceTask(ctx, task.ID); err != nil {
		t.Fatalf("AdvanceTask: %v", err)
	}
	remote := h.backend.Tasks(p.ID)
	if len(remote) != 1 || remote[0].Status != types.TaskInProgress {
		t.Fatalf("remote tasks = %+v", remote)
	}

	if _, err := w.SendMessage(ctx, "hi team"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := w.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	msgs := w.Store().Messages()
	if len(msgs) != 1 || msgs[0].Text != "hi team" || msgs[0].Status != "" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestWorkspace_Members(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	h.open(t, w)
	ctx := context.Background()

	m, err := w.InviteMember(ctx, "bob@example.com", "")
	if err != nil {
		t.Fatalf("InviteMember: %v", err)
	}
	members, err := w.Members(ctx)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %+v", members)
	}
	if err := w.RemoveMember(ctx, m.UserID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
}

func TestWorkspace_PlanWorkCreatesCandidates(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	p := h.open(t, w)

	res, err := w.PlanWork(context.Background(), PlanRequest{Goal: "Billing", Repo: "acme/app", MaxTasks: 3})
	if err != nil {
		t.Fatalf("PlanWork: %v", err)
	}
	if len(res.Created) != 3 || len(res.Failed) != 0 {
		t.Fatalf("created %d failed %d, want 3 and 0", len(res.Created), len(res.Failed))
	}
	if n := len(h.backend.Tasks(p.ID)); n != 3 {
		t.Errorf("remote tasks = %d, want 3", n)
	}
	if len(res.Breakdown.Notes) == 0 {
		t.Error("notes dropped")
	}
}

func TestWorkspace_PlanWorkFailureCreatesNothing(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	p := h.open(t, w)

	_, err := w.PlanWork(context.Background(), PlanRequest{Goal: "  "})
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("PlanWork = %v, want ErrInvalidCommand", err)
	}
	if n := len(h.backend.Tasks(p.ID)); n != 0 {
		t.Errorf("remote tasks = %d, want 0", n)
	}
	if n := len(w.Store().Tasks()); n != 0 {
		t.Errorf("local tasks = %d, want 0", n)
	}
}

func TestWorkspace_AskPostsAssistantMessage(t *testing.T) {
	h := newHarness(t)
	w := h.dial(t)
	p := h.open(t, w)

	msg, err := w.Ask(context.Background(), "flaky build", "what should we do")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if msg.Sender != types.SenderAssistant || msg.SenderLabel != AssistantLabel {
		t.Errorf("message = %+v, want assistant", msg)
	}
	remote := h.backend.Messages(p.ID)
	if len(remote) != 1 || remote[0].Sender != types.SenderAssistant {
		t.Errorf("remote messages = %+v", remote)
	}
}

func TestWorkspace_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	w, err := Dial(context.Background(), h.cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	h.open(t, w)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := w.RestoreSession(context.Background()); err == nil {
		t.Error("RestoreSession after Close succeeded")
	}
}
