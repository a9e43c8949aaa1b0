package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// TailscaleConfig holds configuration for reaching a host over a tailnet.
type TailscaleConfig struct {
	Enabled    bool   // Whether the websocket bridge dials through tsnet
	Hostname   string // tsnet hostname of this client (e.g., "huddle-alice")
	StateDir   string // Directory for tsnet state persistence
	AuthKey    string // Tailscale auth key (loaded from env)
	ControlURL string // Control plane URL (empty = Tailscale SaaS; set for Headscale)
}

// LoadTailscaleConfig loads Tailscale configuration from environment variables.
//
// Environment variables:
//   - HUDDLE_TS_ENABLED: "true"/"1"/"yes" to enable (default: false)
//   - HUDDLE_TS_HOSTNAME: tsnet hostname (required when enabled)
//   - HUDDLE_TS_AUTHKEY: Tailscale auth key (required when enabled)
//   - HUDDLE_TS_STATE_DIR: state directory (default: .huddle/var/tsnet)
//   - HUDDLE_TAILSCALE_CONTROL_URL: control plane URL (optional, for Headscale)
func LoadTailscaleConfig(huddleDir string) TailscaleConfig {
	cfg := TailscaleConfig{
		Enabled:    envBool("HUDDLE_TS_ENABLED"),
		Hostname:   os.Getenv("HUDDLE_TS_HOSTNAME"),
		StateDir:   filepath.Join(huddleDir, "var", "tsnet"),
		AuthKey:    os.Getenv("HUDDLE_TS_AUTHKEY"),
		ControlURL: os.Getenv("HUDDLE_TAILSCALE_CONTROL_URL"),
	}

	if d := os.Getenv("HUDDLE_TS_STATE_DIR"); d != "" {
		cfg.StateDir = d
	}

	return cfg
}

// Validate checks that the configuration is valid when enabled.
// Returns nil if disabled or valid.
func (c *TailscaleConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Hostname == "" {
		return fmt.Errorf("HUDDLE_TS_HOSTNAME is required when Tailscale dialing is enabled")
	}

	if c.AuthKey == "" {
		return fmt.Errorf("HUDDLE_TS_AUTHKEY is required when Tailscale dialing is enabled")
	}

	return nil
}

// envBool returns true if the env var is set to a truthy value ("true", "1", "yes").
func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1" || v == "yes"
}
