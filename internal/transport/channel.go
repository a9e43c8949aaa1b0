package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leonletto/huddle/internal/identity"
)

// DefaultTimeout is the per-request budget when the caller passes none.
const DefaultTimeout = 12 * time.Second

// Bridge carries frames to the privileged host process.
type Bridge interface {
	// Post writes one outbound frame.
	Post(ctx context.Context, frame []byte) error
	// Close tears the bridge down.
	Close() error
}

// Inbox receives what a Bridge reads from the host.
type Inbox interface {
	Deliver(frame []byte)
	BridgeClosed(b Bridge, err error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithDefaultTimeout sets the budget used when Send is given no timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator overrides correlation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Channel) {
		if fn != nil {
			c.newID = fn
		}
	}
}

type result struct {
	data json.RawMessage
	err  error
}

type pendingRequest struct {
	commandID string
	done      chan result // buffered 1; written exactly once by settle
	timer     *time.Timer
}

// Channel multiplexes request/response calls over a single Bridge.
// Every response is matched to its request by correlation id. Frames that
// match no pending request are dropped.
type Channel struct {
	mu             sync.Mutex
	bridge         Bridge
	pending        map[string]*pendingRequest
	defaultTimeout time.Duration
	newID          func() string
	logger         *slog.Logger
}

// NewChannel creates a channel with no bridge attached. Send fails with
// ErrTransportUnavailable until Attach is called.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		pending:        make(map[string]*pendingRequest),
		defaultTimeout: DefaultTimeout,
		newID:          identity.NewRequestID,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach sets the bridge used for outbound frames, replacing any previous one.
func (c *Channel) Attach(b Bridge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bridge = b
}

// Available reports whether a bridge is attached.
func (c *Channel) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bridge != nil
}

// Pending returns the number of requests awaiting a response.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Send posts commandID with args and waits for the correlated response, the
// timeout, or ctx. A timeout <= 0 uses the channel default.
func (c *Channel) Send(ctx context.Context, commandID string, args any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	var rawArgs json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal args for %s: %w", commandID, err)
		}
		rawArgs = b
	}

	c.mu.Lock()
	bridge := c.bridge
	if bridge == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", commandID, ErrTransportUnavailable)
	}

	id := c.newID()
	frame, err := json.Marshal(OutboundFrame{
		Command:   CommandExecute,
		RequestID: id,
		CommandID: commandID,
		Args:      rawArgs,
	})
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("marshal frame: %w", err)
	}

	p := &pendingRequest{
		commandID: commandID,
		done:      make(chan result, 1),
	}
	p.timer = time.AfterFunc(timeout, func() {
		c.settle(id, result{err: fmt.Errorf("%s after %s: %w", commandID, timeout, ErrTimeout)})
	})
	c.pending[id] = p
	c.mu.Unlock()

	if err := bridge.Post(ctx, frame); err != nil {
		c.settle(id, result{err: fmt.Errorf("%s: post: %v: %w", commandID, err, ErrTransportUnavailable)})
	}

	select {
	case r := <-p.done:
		return r.data, r.err
	case <-ctx.Done():
		c.settle(id, result{err: ctx.Err()})
		r := <-p.done
		return r.data, r.err
	}
}

// Deliver handles one inbound frame from the bridge.
func (c *Channel) Deliver(frame []byte) {
	raw, id, ok := peekResponse(frame)
	if !ok {
		c.logger.Debug("transport: dropping uncorrelated frame", "bytes", len(frame))
		return
	}

	c.mu.Lock()
	p, found := c.pending[id]
	c.mu.Unlock()
	if !found {
		c.logger.Debug("transport: dropping stale response", "request_id", id)
		return
	}

	data, err := resolveResponse(p.commandID, raw)
	c.settle(id, result{data: data, err: err})
}

// BridgeClosed fails every pending request and detaches b if it is still the
// active bridge.
func (c *Channel) BridgeClosed(b Bridge, err error) {
	c.mu.Lock()
	if c.bridge == b {
		c.bridge = nil
	}
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("transport: bridge closed", "error", err, "pending", len(ids))
	}
	for _, id := range ids {
		c.settle(id, result{err: fmt.Errorf("bridge closed: %w", ErrTransportUnavailable)})
	}
}

// Close detaches and closes the bridge. Pending requests fail with
// ErrTransportUnavailable.
func (c *Channel) Close() error {
	c.mu.Lock()
	b := c.bridge
	c.mu.Unlock()
	if b == nil {
		return nil
	}
	err := b.Close()
	c.BridgeClosed(b, nil)
	return err
}

// settle removes the pending record for id and hands r to its waiter.
// Only the first settle for an id has any effect.
func (c *Channel) settle(id string, r result) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	p.done <- r
	return true
}
