package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// DialOption configures a bridge dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	netDial func(ctx context.Context, network, addr string) (net.Conn, error)
	header  http.Header
	logger  *slog.Logger
}

// WithNetDial routes the underlying TCP connection through fn, e.g. a
// tailnet dialer.
func WithNetDial(fn func(ctx context.Context, network, addr string) (net.Conn, error)) DialOption {
	return func(o *dialOptions) {
		o.netDial = fn
	}
}

// WithHeader adds HTTP headers to the WebSocket handshake.
func WithHeader(h http.Header) DialOption {
	return func(o *dialOptions) {
		o.header = h
	}
}

// WithBridgeLogger sets the logger used by the bridge read loop.
func WithBridgeLogger(l *slog.Logger) DialOption {
	return func(o *dialOptions) {
		o.logger = l
	}
}

func buildDialOptions(opts []DialOption) dialOptions {
	o := dialOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WebSocketBridge is a Bridge over one WebSocket connection. Each frame is
// one text message.
type WebSocketBridge struct {
	conn      *websocket.Conn
	inbox     Inbox
	logger    *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// DialWebSocket connects to the host at rawURL and starts delivering
// inbound frames to inbox.
func DialWebSocket(ctx context.Context, rawURL string, inbox Inbox, opts ...DialOption) (*WebSocketBridge, error) {
	o := buildDialOptions(opts)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext:   o.netDial,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, rawURL, o.header)
	if err != nil {
		return nil, fmt.Errorf("connect to host at %s: %w", rawURL, err)
	}

	b := &WebSocketBridge{
		conn:   conn,
		inbox:  inbox,
		logger: o.logger,
		done:   make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go b.readLoop()
	go b.pingLoop()

	return b, nil
}

// Post writes one frame as a text message.
func (b *WebSocketBridge) Post(ctx context.Context, frame []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)
	if err := b.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Done is closed once the read loop has exited.
func (b *WebSocketBridge) Done() <-chan struct{} {
	return b.done
}

// Close sends a close frame and shuts the connection down.
func (b *WebSocketBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.writeMu.Lock()
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(writeWait))
		b.writeMu.Unlock()
		err = b.conn.Close()
	})
	<-b.done
	return err
}

func (b *WebSocketBridge) readLoop() {
	defer close(b.done)
	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.inbox.BridgeClosed(b, fmt.Errorf("read: %w", err))
			} else {
				b.inbox.BridgeClosed(b, nil)
			}
			return
		}
		b.inbox.Deliver(msg)
	}
}

func (b *WebSocketBridge) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				b.logger.Debug("transport: ping failed", "error", err)
				return
			}
		}
	}
}
