package transport

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/leonletto/huddle/internal/config"
	"tailscale.com/tsnet"
)

// TailnetDialer dials the host through an embedded tsnet node, so a client
// can reach a host that is only exposed on the tailnet.
type TailnetDialer struct {
	server *tsnet.Server
}

// NewTailnetDialer creates a tsnet node from cfg. The node starts lazily on
// the first dial. The caller is responsible for calling Close.
func NewTailnetDialer(cfg config.TailscaleConfig) (*TailnetDialer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("tailscale dialing is not enabled")
	}

	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
			return nil, fmt.Errorf("create tsnet state directory %s: %w", cfg.StateDir, err)
		}
	}

	srv := &tsnet.Server{
		Hostname: cfg.Hostname,
		AuthKey:  cfg.AuthKey,
		Dir:      cfg.StateDir,
	}
	if cfg.ControlURL != "" {
		srv.ControlURL = cfg.ControlURL
	}

	return &TailnetDialer{server: srv}, nil
}

// DialContext matches the signature WithNetDial expects.
func (d *TailnetDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.server.Dial(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("tailnet dial %s: %w", addr, err)
	}
	return conn, nil
}

// Close shuts the tsnet node down.
func (d *TailnetDialer) Close() error {
	return d.server.Close()
}
