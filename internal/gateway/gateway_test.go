package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leonletto/huddle/internal/transport"
	"github.com/leonletto/huddle/internal/types"
)

type sentCall struct {
	commandID string
	args      string
	timeout   time.Duration
}

type fakeSender struct {
	calls []sentCall
	data  string
	err   error
}

func (f *fakeSender) Send(_ context.Context, commandID string, args any, timeout time.Duration) (json.RawMessage, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, sentCall{commandID: commandID, args: string(b), timeout: timeout})
	if f.err != nil {
		return nil, f.err
	}
	if f.data == "" {
		return nil, nil
	}
	return json.RawMessage(f.data), nil
}

func TestKinds_CatalogComplete(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != len(kindIDs) {
		t.Fatalf("Kinds() returned %d entries, catalog has %d", len(kinds), len(kindIDs))
	}
	for _, k := range kinds {
		id := k.ID()
		if id == "" {
			t.Errorf("kind %d has no id", int(k))
			continue
		}
		back, ok := KindFromID(id)
		if !ok || back != k {
			t.Errorf("KindFromID(%q) = %v, %v", id, back, ok)
		}
		cmd, ok := NewCommand(k)
		if !ok {
			t.Errorf("NewCommand(%s) not implemented", id)
			continue
		}
		if cmd.Kind() != k {
			t.Errorf("NewCommand(%s).Kind() = %s", id, cmd.Kind())
		}
	}
	if _, ok := KindFromID("tasks.explode"); ok {
		t.Error("unknown id should not resolve")
	}
	if cmd, ok := NewCommand(Kind(len(kindIDs) + 100)); ok || cmd != nil {
		t.Errorf("NewCommand(out of range) = %v, %v", cmd, ok)
	}
}

func TestExecute_TimeoutsByKind(t *testing.T) {
	s := &fakeSender{data: `"ok"`}
	g := New(s, WithTimeouts(3*time.Second, 9*time.Second))
	ctx := context.Background()

	if err := g.Subscribe(ctx, "prj_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.GenerateWorkBreakdown(ctx, GenerateWorkBreakdown{Prompt: "plan"}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Execute(ctx, MergePullRequest{Repo: "acme/app", Number: 4}); err != nil {
		t.Fatal(err)
	}

	want := []time.Duration{3 * time.Second, 9 * time.Second, 9 * time.Second}
	for i, c := range s.calls {
		if c.timeout != want[i] {
			t.Errorf("call %d (%s) timeout = %s, want %s", i, c.commandID, c.timeout, want[i])
		}
	}
}

func TestExecute_InvalidCommandNotSent(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"empty project name", CreateProject{Name: "  "}},
		{"bad email", InviteMember{ProjectID: "prj_1", Email: "bob"}},
		{"task without title", CreateTask{ProjectID: "prj_1", Status: types.TaskBacklog}},
		{"task bad status", CreateTask{ProjectID: "prj_1", Title: "x", Status: "blocked"}},
		{"status update without id", UpdateTaskStatus{Status: types.TaskDone}},
		{"message bad sender", SendMessage{ProjectID: "prj_1", Text: "hi", Sender: "robot"}},
		{"presence bad status", UpsertPresence{ProjectID: "prj_1", UserID: "u", Status: "away"}},
		{"sign in no password", SignIn{Email: "a@b.c"}},
		{"suggest empty", SuggestFromSelection{}},
		{"repo not owner/name", RepoSummary{Repo: "app"}},
		{"comment no number", CommentPullRequest{Repo: "acme/app", Body: "lgtm"}},
		{"merge bad method", MergePullRequest{Repo: "acme/app", Number: 1, Method: "octopus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			_, err := New(s).Execute(context.Background(), tt.cmd)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Fatalf("expected ErrInvalidCommand, got %v", err)
			}
			if len(s.calls) != 0 {
				t.Errorf("invalid command was sent: %+v", s.calls)
			}
		})
	}
}

func TestCreateTask_WireShape(t *testing.T) {
	s := &fakeSender{data: `{"id":"tsk_1","project_id":"prj_1","title":"Write docs","status":"backlog","assignee_id":null}`}
	g := New(s)

	task, err := g.CreateTask(context.Background(), CreateTask{ProjectID: "prj_1", Title: "Write docs", Status: types.TaskBacklog})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task == nil || task.ID != "tsk_1" {
		t.Fatalf("unexpected task %+v", task)
	}
	if s.calls[0].commandID != "tasks.create" {
		t.Errorf("command id = %q", s.calls[0].commandID)
	}
	if s.calls[0].args != `{"project_id":"prj_1","title":"Write docs","status":"backlog"}` {
		t.Errorf("args = %s", s.calls[0].args)
	}
}

func TestListTasks_CoercesNonArrays(t *testing.T) {
	for _, data := range []string{"", "null", `{"tasks":[]}`, `"nope"`, `42`} {
		s := &fakeSender{data: data}
		tasks, err := New(s).ListTasks(context.Background(), "prj_1")
		if err != nil {
			t.Fatalf("data %q: %v", data, err)
		}
		if tasks == nil || len(tasks) != 0 {
			t.Errorf("data %q: want empty non-nil slice, got %#v", data, tasks)
		}
	}
}

func TestListMessages_Decodes(t *testing.T) {
	s := &fakeSender{data: `[{"id":"msg_1","project_id":"prj_1","text":"hello","author_id":"usr_1","sender":"user","created_at":"2026-01-02T03:04:05Z"}]`}
	msgs, err := New(s).ListMessages(context.Background(), "prj_1")
	if err != nil {
		t.Fatal(err)
	}
	want := []types.Message{{
		ID:        "msg_1",
		ProjectID: "prj_1",
		Text:      "hello",
		AuthorID:  "usr_1",
		Sender:    types.SenderUser,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestListTasks_MalformedArray(t *testing.T) {
	s := &fakeSender{data: `[{"id": 7}]`}
	_, err := New(s).ListTasks(context.Background(), "prj_1")
	if !errors.Is(err, transport.ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
}

func TestGetSession_SignedOut(t *testing.T) {
	for _, data := range []string{"null", `{"user":null}`} {
		s := &fakeSender{data: data}
		sess, err := New(s).GetSession(context.Background())
		if err != nil || sess != nil {
			t.Errorf("data %q: got %+v, %v", data, sess, err)
		}
	}
}

func TestSignIn_RequiresUser(t *testing.T) {
	s := &fakeSender{data: `{}`}
	_, err := New(s).SignIn(context.Background(), "a@b.c", "pw")
	if !errors.Is(err, transport.ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}

	s = &fakeSender{data: `{"user":{"uid":"usr_1","email":"a@b.c","display_name":"A"}}`}
	sess, err := New(s).SignIn(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if sess.User.UID != "usr_1" {
		t.Errorf("uid = %q", sess.User.UID)
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		data    string
		want    string
		wantErr bool
	}{
		{data: `"plain"`, want: "plain"},
		{data: `{"text":"from text"}`, want: "from text"},
		{data: `{"content":"from content"}`, want: "from content"},
		{data: `null`, want: ""},
		{data: `{"other":1}`, wantErr: true},
		{data: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := DecodeText(KindGenerateWorkBreakdown, json.RawMessage(tt.data))
		if tt.wantErr {
			if !errors.Is(err, transport.ErrProtocolViolation) {
				t.Errorf("%s: expected protocol violation, got %v", tt.data, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %q, %v; want %q", tt.data, got, err, tt.want)
		}
	}
}

func TestRepoSummary_FillsEmptyCollections(t *testing.T) {
	s := &fakeSender{data: `{"repo":"acme/app"}`}
	sum, err := New(s).RepoSummary(context.Background(), "acme/app")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Commits == nil || sum.PullRequests == nil {
		t.Errorf("collections should be non-nil: %+v", sum)
	}
}

func TestExecute_PropagatesTransportErrors(t *testing.T) {
	remote := &transport.RemoteCommandError{CommandID: "tasks.updateStatus", Message: "forbidden"}
	s := &fakeSender{err: remote}
	err := New(s).UpdateTaskStatus(context.Background(), "prj_1", "tsk_1", types.TaskDone)
	if !errors.Is(err, transport.ErrRemoteCommand) {
		t.Fatalf("expected remote command error, got %v", err)
	}
	if len(s.calls) != 1 {
		t.Errorf("gateway must not retry, got %d calls", len(s.calls))
	}
}
