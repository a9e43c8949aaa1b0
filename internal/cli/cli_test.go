package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/leonletto/huddle/internal/prefs"
	"github.com/leonletto/huddle/internal/types"
)

func strPtr(s string) *string { return &s }

func TestGetWidthFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{"valid width", "120", 120},
		{"small width", "40", 40},
		{"invalid value", "abc", 0},
		{"empty value", "", 0},
		{"zero", "0", 0},
		{"negative", "-1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COLUMNS", tt.envValue)
			if got := getWidthFromEnv(); got != tt.expected {
				t.Errorf("getWidthFromEnv() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestReadPassword_FromPipe(t *testing.T) {
	var prompt strings.Builder
	pw, err := ReadPassword(strings.NewReader("hunter2\n"), &prompt, "Password: ")
	if err != nil {
		t.Fatalf("ReadPassword: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("password = %q", pw)
	}
	if prompt.String() != "Password: " {
		t.Errorf("prompt = %q", prompt.String())
	}

	if _, err := ReadPassword(strings.NewReader(""), &prompt, ""); err == nil {
		t.Error("empty input accepted")
	}
}

func TestFormatBoard(t *testing.T) {
	tasks := []types.Task{
		{ID: "tsk_1", Title: "Write brief", Status: types.TaskDone},
		{ID: "tsk_2", Title: "Build it", Status: types.TaskInProgress, AssigneeID: strPtr("usr_ada")},
		{ID: "temp-abc", Title: "Ship", Status: types.TaskBacklog},
		{ID: "tsk_3", Title: "Odd one", Status: "blocked"},
	}
	out := FormatBoard(tasks, map[string]string{"usr_ada": "Ada"})

	for _, want := range []string{"Backlog (1)", "In progress (1)", "Done (1)", "Other (1)", "@Ada", "(pending)", "[blocked]"} {
		if !strings.Contains(out, want) {
			t.Errorf("board missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Backlog") > strings.Index(out, "Done") {
		t.Errorf("columns out of order:\n%s", out)
	}

	if got := FormatBoard(nil, nil); got != "No tasks on the board.\n" {
		t.Errorf("empty board = %q", got)
	}
}

func TestFormatMessages(t *testing.T) {
	t.Setenv("COLUMNS", "60")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []types.Message{
		{ID: "msg_1", Text: "hello", AuthorID: "usr_ada", CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "temp-1", Text: "retry me", Sender: types.SenderAssistant, CreatedAt: now, Status: types.MessageFailed},
	}
	out := FormatMessages(msgs, now)
	for _, want := range []string{"usr_ada", "5m ago", "assistant", "(failed)", "hello", "retry me"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if FormatMessages(nil, now) != "No messages yet.\n" {
		t.Error("empty feed text changed")
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "-"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-90 * time.Minute), "1h ago"},
		{now.Add(-3 * 24 * time.Hour), "3d ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.at, now); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("the quick brown fox\njumps", 10)
	want := "the quick\nbrown fox\njumps"
	if got != want {
		t.Errorf("wordWrap = %q, want %q", got, want)
	}
}

func TestFormatWhoamiAndPrefs(t *testing.T) {
	if FormatWhoami(nil, nil) != "Not signed in.\n" {
		t.Error("signed-out text changed")
	}
	out := FormatWhoami(&types.User{UID: "usr_1", DisplayName: "Ada", Email: "ada@example.com"}, &types.Project{ID: "prj_1"})
	if !strings.Contains(out, "Ada <ada@example.com>") || !strings.Contains(out, "(unnamed) (prj_1)") {
		t.Errorf("whoami = %q", out)
	}

	p := prefs.Defaults()
	out = FormatPrefs(p)
	for _, key := range prefs.Keys() {
		if !strings.Contains(out, key) {
			t.Errorf("prefs output missing %q", key)
		}
	}
}

func TestCurrentProject(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCurrentProject(dir); !errors.Is(err, ErrNoCurrentProject) {
		t.Fatalf("Load before save = %v, want ErrNoCurrentProject", err)
	}

	want := types.Project{ID: "prj_1", Name: "Launch"}
	if err := SaveCurrentProject(dir, want); err != nil {
		t.Fatalf("SaveCurrentProject: %v", err)
	}
	got, err := LoadCurrentProject(dir)
	if err != nil {
		t.Fatalf("LoadCurrentProject: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}

	if err := ClearCurrentProject(dir); err != nil {
		t.Fatalf("ClearCurrentProject: %v", err)
	}
	if err := ClearCurrentProject(dir); err != nil {
		t.Fatalf("second ClearCurrentProject: %v", err)
	}
	if _, err := LoadCurrentProject(dir); !errors.Is(err, ErrNoCurrentProject) {
		t.Errorf("Load after clear = %v", err)
	}

	if err := SaveCurrentProject(dir, types.Project{}); err == nil {
		t.Error("saved a project without id")
	}
}

func TestHint(t *testing.T) {
	if Hint("tasks.empty", true, false) != "" || Hint("tasks.empty", false, true) != "" {
		t.Error("hint not suppressed")
	}
	if h := Hint("tasks.empty", false, false); !strings.HasPrefix(h, "  Tip:") {
		t.Errorf("hint = %q", h)
	}
	if Hint("nope", false, false) != "" {
		t.Error("unknown command produced a hint")
	}
}
