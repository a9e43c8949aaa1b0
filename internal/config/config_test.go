package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var configEnv = []string{
	"HUDDLE_TRANSPORT", "HUDDLE_HOST_URL", "HUDDLE_SOCKET",
	"HUDDLE_TIMEOUT", "HUDDLE_LONG_TIMEOUT", "HUDDLE_POLL_INTERVAL",
	"HUDDLE_HEARTBEAT_INTERVAL", "HUDDLE_IDLE_AFTER",
	"HUDDLE_AI_MAX_TASKS", "HUDDLE_AI_MODEL",
	"HUDDLE_TS_ENABLED", "HUDDLE_TS_HOSTNAME", "HUDDLE_TS_AUTHKEY",
	"HUDDLE_TS_STATE_DIR", "HUDDLE_TAILSCALE_CONTROL_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), ".huddle")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default(dir)
	want.Tailscale = TailscaleConfig{StateDir: filepath.Join(dir, "var", "tsnet")}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Polling.Tasks.Std() != 5*time.Second {
		t.Errorf("task poll = %s, want 5s", cfg.Polling.Tasks.Std())
	}
	if cfg.Presence.IdleAfter.Std() != 60*time.Second {
		t.Errorf("idle after = %s, want 60s", cfg.Presence.IdleAfter.Std())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	data := `{
  "host": {"transport": "unix", "socket_path": "/tmp/h.sock"},
  "polling": {"tasks": "2s", "messages": 3},
  "ai": {"max_tasks": 12, "model": "planner-small"}
}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host.Transport != "unix" || cfg.Host.SocketPath != "/tmp/h.sock" {
		t.Errorf("host = %+v", cfg.Host)
	}
	if cfg.Host.URL != DefaultHostURL {
		t.Errorf("unset url should keep default, got %q", cfg.Host.URL)
	}
	if cfg.Polling.Tasks.Std() != 2*time.Second {
		t.Errorf("tasks poll = %s, want 2s", cfg.Polling.Tasks.Std())
	}
	if cfg.Polling.Messages.Std() != 3*time.Second {
		t.Errorf("messages poll = %s, want 3s", cfg.Polling.Messages.Std())
	}
	if cfg.Timeouts.Default.Std() != DefaultTimeout {
		t.Errorf("default timeout = %s", cfg.Timeouts.Default.Std())
	}
	if cfg.AI.MaxTasks != 12 || cfg.AI.Model != "planner-small" {
		t.Errorf("ai = %+v", cfg.AI)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	data := `host:
  transport: unix
  socket_path: /tmp/y.sock
presence:
  heartbeat: 10s
  idle_after: 2m
ai:
  max_tasks: 4
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host.Transport != "unix" || cfg.Host.SocketPath != "/tmp/y.sock" {
		t.Errorf("host = %+v", cfg.Host)
	}
	if cfg.Presence.Heartbeat.Std() != 10*time.Second || cfg.Presence.IdleAfter.Std() != 2*time.Minute {
		t.Errorf("presence = %+v", cfg.Presence)
	}
	if cfg.Polling.Tasks.Std() != DefaultPollInterval {
		t.Errorf("tasks poll = %s, want default", cfg.Polling.Tasks.Std())
	}
	if cfg.AI.MaxTasks != 4 {
		t.Errorf("max tasks = %d, want 4", cfg.AI.MaxTasks)
	}

	// config.json wins when both exist.
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"ai":{"max_tasks":7}}`), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.MaxTasks != 7 || cfg.Host.Transport != "websocket" {
		t.Errorf("json should shadow yaml, got ai=%+v host=%+v", cfg.AI, cfg.Host)
	}
}

func TestLoad_YAMLBadDuration(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("polling:\n  tasks: soon\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "config.yaml") {
		t.Errorf("err = %v, want parse error naming config.yaml", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"polling":{"tasks":"2s"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HUDDLE_POLL_INTERVAL", "750ms")
	t.Setenv("HUDDLE_HOST_URL", "ws://example.test:1/bridge")
	t.Setenv("HUDDLE_AI_MAX_TASKS", "40")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Polling.Tasks.Std() != 750*time.Millisecond || cfg.Polling.Messages.Std() != 750*time.Millisecond {
		t.Errorf("polling = %+v", cfg.Polling)
	}
	if cfg.Host.URL != "ws://example.test:1/bridge" {
		t.Errorf("url = %q", cfg.Host.URL)
	}
	if cfg.AI.MaxTasks != MaxAIMaxTasks {
		t.Errorf("max tasks = %d, want clamp to %d", cfg.AI.MaxTasks, MaxAIMaxTasks)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "bad json", file: `{"host":`, wantErr: "parse"},
		{name: "bad duration", file: `{"polling":{"tasks":"soon"}}`, wantErr: "invalid duration"},
		{name: "unknown transport", file: `{"host":{"transport":"carrier-pigeon"}}`, wantErr: "unknown transport"},
		{name: "zero heartbeat", file: `{"presence":{"heartbeat":"0s"}}`, wantErr: "presence.heartbeat"},
		{name: "bad env duration", env: map[string]string{"HUDDLE_TIMEOUT": "fast"}, wantErr: "HUDDLE_TIMEOUT"},
		{name: "bad env int", env: map[string]string{"HUDDLE_AI_MAX_TASKS": "many"}, wantErr: "HUDDLE_AI_MAX_TASKS"},
		{name: "tailscale missing key", env: map[string]string{"HUDDLE_TS_ENABLED": "1", "HUDDLE_TS_HOSTNAME": "me"}, wantErr: "HUDDLE_TS_AUTHKEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			if tt.file != "" {
				if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(tt.file), 0600); err != nil {
					t.Fatal(err)
				}
			}
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), ".huddle")
	cfg := Default(dir)
	cfg.Host.Transport = "unix"
	cfg.Presence.Heartbeat = Duration(45 * time.Second)

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"heartbeat": "45s"`) {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Host.Transport != "unix" || got.Presence.Heartbeat.Std() != 45*time.Second {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestClampMaxTasks(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultAIMaxTasks},
		{-4, DefaultAIMaxTasks},
		{1, MinAIMaxTasks},
		{3, 3},
		{18, 18},
		{25, 25},
		{26, MaxAIMaxTasks},
	}
	for _, tt := range tests {
		if got := ClampMaxTasks(tt.in); got != tt.want {
			t.Errorf("ClampMaxTasks(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadTailscaleConfig_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUDDLE_TS_ENABLED", "yes")
	t.Setenv("HUDDLE_TS_HOSTNAME", "huddle-alice")
	t.Setenv("HUDDLE_TS_AUTHKEY", "tskey-test-123")
	t.Setenv("HUDDLE_TAILSCALE_CONTROL_URL", "https://headscale.example.com")

	cfg := LoadTailscaleConfig("/tmp/.huddle")

	want := TailscaleConfig{
		Enabled:    true,
		Hostname:   "huddle-alice",
		StateDir:   "/tmp/.huddle/var/tsnet",
		AuthKey:    "tskey-test-123",
		ControlURL: "https://headscale.example.com",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("tailscale config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestTailscaleConfig_ValidateDisabled(t *testing.T) {
	cfg := TailscaleConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config should validate, got %v", err)
	}
	cfg = TailscaleConfig{Enabled: true, AuthKey: "k"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "HUDDLE_TS_HOSTNAME") {
		t.Errorf("expected hostname error, got %v", err)
	}
}
