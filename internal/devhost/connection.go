package devhost

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxFrameSize = 4 << 20
)

var errConnClosed = errors.New("connection closed")

// wsConn is one bridge client on the WebSocket endpoint.
type wsConn struct {
	id     string
	conn   *websocket.Conn
	server *Server
	sendCh chan []byte
	mu     sync.Mutex
	closed bool
}

func newWSConn(conn *websocket.Conn, server *Server) *wsConn {
	return &wsConn{
		conn:   conn,
		server: server,
		sendCh: make(chan []byte, 256),
	}
}

// readLoop answers frames in arrival order until the peer goes away.
func (c *wsConn) readLoop(ctx context.Context) error {
	defer func() {
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				return fmt.Errorf("read error: %w", err)
			}
			return nil
		}

		reply, ok := c.server.answer(ctx, c.id, message)
		if !ok {
			continue
		}
		if err := c.send(reply); err != nil {
			return err
		}
	}
}

// writeLoop drains sendCh and keeps the socket alive with pings.
func (c *wsConn) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case message, ok := <-c.sendCh:
			if !ok {
				return nil
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return fmt.Errorf("write error: %w", err)
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping error: %w", err)
			}
		}
	}
}

func (c *wsConn) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}
	select {
	case c.sendCh <- msg:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close closes the socket. It is safe to call more than once.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.sendCh)
	return c.conn.Close()
}

// serveUnix answers newline-delimited frames on one socket connection.
func (s *Server) serveUnix(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	id := s.conns.add(conn)
	defer s.conns.remove(id)
	defer s.limiter.Forget(id)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		reply, ok := s.answer(ctx, id, line)
		if !ok {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := writer.Write(reply); err != nil {
			return
		}
		if err := writer.WriteByte('\n'); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("devhost: unix read ended", "error", err)
	}
}
