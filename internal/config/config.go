package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither config.json nor the environment set a value.
const (
	DefaultHostURL           = "ws://localhost:9870/bridge"
	DefaultTimeout           = 12 * time.Second
	DefaultLongTimeout       = 20 * time.Second
	DefaultPollInterval      = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultIdleAfter         = 60 * time.Second
	DefaultAIMaxTasks        = 10
	MinAIMaxTasks            = 3
	MaxAIMaxTasks            = 25
)

// Duration is a time.Duration that reads and writes as a Go duration
// string ("5s", "1m30s") in config.json and config.yaml. Bare numbers are
// taken as seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if numErr := json.Unmarshal(data, &secs); numErr != nil {
			return fmt.Errorf("duration must be a string like \"5s\": %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"5s\"", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// Config represents the resolved client configuration: .huddle/config.json
// (or config.yaml) overlaid with HUDDLE_* environment variables.
type Config struct {
	Host     HostConfig     `json:"host" yaml:"host"`
	Timeouts TimeoutConfig  `json:"timeouts" yaml:"timeouts"`
	Polling  PollingConfig  `json:"polling" yaml:"polling"`
	Presence PresenceConfig `json:"presence" yaml:"presence"`
	AI       AIConfig       `json:"ai" yaml:"ai"`

	// Tailscale is environment-only so auth keys never land in config.json.
	Tailscale TailscaleConfig `json:"-" yaml:"-"`
}

// HostConfig selects how the client reaches the host backend.
type HostConfig struct {
	Transport  string `json:"transport" yaml:"transport"`                           // "websocket" or "unix"
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`                   // websocket URL
	SocketPath string `json:"socket_path,omitempty" yaml:"socket_path,omitempty"` // unix socket path
}

// TimeoutConfig holds per-request timeouts.
type TimeoutConfig struct {
	Default Duration `json:"default" yaml:"default"`
	Long    Duration `json:"long" yaml:"long"` // AI and code-hosting commands
}

// PollingConfig holds poller intervals.
type PollingConfig struct {
	Tasks    Duration `json:"tasks" yaml:"tasks"`
	Messages Duration `json:"messages" yaml:"messages"`
}

// PresenceConfig holds heartbeat settings.
type PresenceConfig struct {
	Heartbeat Duration `json:"heartbeat" yaml:"heartbeat"`
	IdleAfter Duration `json:"idle_after" yaml:"idle_after"`
}

// AIConfig holds work-breakdown settings.
type AIConfig struct {
	MaxTasks int    `json:"max_tasks" yaml:"max_tasks"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default(huddleDir string) *Config {
	return &Config{
		Host: HostConfig{
			Transport:  "websocket",
			URL:        DefaultHostURL,
			SocketPath: filepath.Join(huddleDir, "var", "host.sock"),
		},
		Timeouts: TimeoutConfig{
			Default: Duration(DefaultTimeout),
			Long:    Duration(DefaultLongTimeout),
		},
		Polling: PollingConfig{
			Tasks:    Duration(DefaultPollInterval),
			Messages: Duration(DefaultPollInterval),
		},
		Presence: PresenceConfig{
			Heartbeat: Duration(DefaultHeartbeatInterval),
			IdleAfter: Duration(DefaultIdleAfter),
		},
		AI: AIConfig{
			MaxTasks: DefaultAIMaxTasks,
		},
	}
}

// Load reads huddleDir/config.json on top of the defaults and then applies
// environment overrides. When config.json is absent, config.yaml is read
// instead. A missing file is not an error.
func Load(huddleDir string) (*Config, error) {
	cfg := Default(huddleDir)

	if err := readConfigFile(huddleDir, cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Tailscale = LoadTailscaleConfig(huddleDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(huddleDir string, cfg *Config) error {
	formats := []struct {
		name      string
		unmarshal func([]byte, any) error
	}{
		{"config.json", json.Unmarshal},
		{"config.yaml", yaml.Unmarshal},
	}
	for _, f := range formats {
		configPath := filepath.Join(huddleDir, f.name)
		data, err := os.ReadFile(configPath) //nolint:gosec // G304 - path from internal huddle directory
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", configPath, err)
		}
		if err := f.unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", configPath, err)
		}
		return nil
	}
	return nil
}

// Save writes cfg to huddleDir/config.json, creating the directory if needed.
func Save(huddleDir string, cfg *Config) error {
	if err := os.MkdirAll(huddleDir, 0750); err != nil {
		return fmt.Errorf("create %s: %w", huddleDir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	configPath := filepath.Join(huddleDir, "config.json")
	if err := os.WriteFile(configPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HUDDLE_TRANSPORT"); v != "" {
		c.Host.Transport = v
	}
	if v := os.Getenv("HUDDLE_HOST_URL"); v != "" {
		c.Host.URL = v
	}
	if v := os.Getenv("HUDDLE_SOCKET"); v != "" {
		c.Host.SocketPath = v
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"HUDDLE_TIMEOUT", &c.Timeouts.Default},
		{"HUDDLE_LONG_TIMEOUT", &c.Timeouts.Long},
		{"HUDDLE_POLL_INTERVAL", &c.Polling.Tasks},
		{"HUDDLE_POLL_INTERVAL", &c.Polling.Messages},
		{"HUDDLE_HEARTBEAT_INTERVAL", &c.Presence.Heartbeat},
		{"HUDDLE_IDLE_AFTER", &c.Presence.IdleAfter},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = Duration(parsed)
	}

	if v := os.Getenv("HUDDLE_AI_MAX_TASKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HUDDLE_AI_MAX_TASKS: %w", err)
		}
		c.AI.MaxTasks = n
	}
	if v := os.Getenv("HUDDLE_AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	return nil
}

// Validate checks the configuration for values the client cannot run with.
// An out-of-range AI task limit is clamped rather than rejected.
func (c *Config) Validate() error {
	switch c.Host.Transport {
	case "", "websocket", "ws":
		if c.Host.URL == "" {
			return fmt.Errorf("host url is required for the websocket transport")
		}
	case "unix", "unix_socket":
		if c.Host.SocketPath == "" {
			return fmt.Errorf("socket path is required for the unix transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want websocket or unix)", c.Host.Transport)
	}

	positive := []struct {
		name string
		d    Duration
	}{
		{"timeouts.default", c.Timeouts.Default},
		{"timeouts.long", c.Timeouts.Long},
		{"polling.tasks", c.Polling.Tasks},
		{"polling.messages", c.Polling.Messages},
		{"presence.heartbeat", c.Presence.Heartbeat},
		{"presence.idle_after", c.Presence.IdleAfter},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.d.Std())
		}
	}

	c.AI.MaxTasks = ClampMaxTasks(c.AI.MaxTasks)

	return c.Tailscale.Validate()
}

// ClampMaxTasks bounds n to the supported work-breakdown size. Zero or
// negative selects the default.
func ClampMaxTasks(n int) int {
	switch {
	case n <= 0:
		return DefaultAIMaxTasks
	case n < MinAIMaxTasks:
		return MinAIMaxTasks
	case n > MaxAIMaxTasks:
		return MaxAIMaxTasks
	default:
		return n
	}
}
