package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// maxFrameSize bounds one newline-delimited frame.
const maxFrameSize = 4 << 20

// UnixBridge is a Bridge over a Unix socket. Frames are newline-delimited
// JSON documents in both directions.
type UnixBridge struct {
	conn      net.Conn
	writer    *bufio.Writer
	inbox     Inbox
	logger    *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// DialUnix connects to the host socket and starts delivering inbound frames
// to inbox.
func DialUnix(ctx context.Context, socketPath string, inbox Inbox, opts ...DialOption) (*UnixBridge, error) {
	o := buildDialOptions(opts)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host at %s: %w", socketPath, err)
	}

	b := &UnixBridge{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		inbox:  inbox,
		logger: o.logger,
		done:   make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

// Post writes one frame followed by a newline.
func (b *UnixBridge) Post(ctx context.Context, frame []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)

	if _, err := b.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := b.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := b.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush frame: %w", err)
	}
	return nil
}

// Done is closed once the read loop has exited.
func (b *UnixBridge) Done() <-chan struct{} {
	return b.done
}

// Close closes the socket.
func (b *UnixBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.conn.Close()
	})
	<-b.done
	return err
}

func (b *UnixBridge) readLoop() {
	defer close(b.done)

	scanner := bufio.NewScanner(b.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)
		b.inbox.Deliver(frame)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		b.logger.Debug("transport: unix read ended", "error", err)
		b.inbox.BridgeClosed(b, fmt.Errorf("read: %w", err))
		return
	}
	b.inbox.BridgeClosed(b, nil)
}
