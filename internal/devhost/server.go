package devhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// BridgePath is where the WebSocket endpoint is served.
const BridgePath = "/bridge"

// Option configures a Server.
type Option func(*Server)

// WithSocketPath additionally serves newline-delimited frames on a Unix
// socket at path.
func WithSocketPath(path string) Option {
	return func(s *Server) {
		s.socketPath = path
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server exposes an Executor over the bridge transports.
type Server struct {
	addr       string
	socketPath string
	exec       Executor
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	unixLn     net.Listener
	conns      *connRegistry
	limiter    *frameLimiter
	baseCtx    context.Context
	mu         sync.RWMutex
	started    bool
	shutdown   bool
	wg         sync.WaitGroup
}

// NewServer creates a server for exec listening on addr ("host:port"; port
// 0 picks a free one).
func NewServer(addr string, exec Executor, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		exec:   exec,
		logger: slog.Default(),
		conns:  newConnRegistry(),
		upgrader: websocket.Upgrader{
			// Local preview host; any origin may connect.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(BridgePath, s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listeners and begins accepting connections. ctx scopes
// the command contexts of every accepted connection.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return errors.New("server is shutting down")
	}
	if s.started {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.baseCtx = ctx

	if s.socketPath != "" {
		if err := s.listenUnix(); err != nil {
			_ = ln.Close()
			return err
		}
		go s.acceptLoop(ctx)
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("devhost: http server stopped", "error", err)
		}
	}()

	s.started = true
	s.logger.Info("devhost: listening", "url", s.urlLocked(), "socket", s.socketPath)
	return nil
}

func (s *Server) listenUnix() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old socket: %w", err)
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.unixLn = ln
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.unixLn.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("devhost: accept failed", "error", err)
			}
			return
		}

		s.mu.RLock()
		if s.shutdown {
			s.mu.RUnlock()
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		s.mu.RUnlock()

		go s.serveUnix(ctx, conn)
	}
}

// Stop closes every connection and listener and waits briefly for the
// connection goroutines to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	s.conns.CloseAll()
	if s.unixLn != nil {
		_ = s.unixLn.Close()
		_ = os.Remove(s.socketPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("devhost: timed out waiting for connections")
	}
	return nil
}

// Addr returns the bound TCP address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the WebSocket bridge URL.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	return "ws://" + addr + BridgePath
}

// SocketPath returns the Unix socket path, empty when not serving one.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int {
	return s.conns.Count()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Hold the read lock across the shutdown check and wg.Add so Stop cannot
	// start waiting in between.
	s.mu.RLock()
	if s.shutdown {
		s.mu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		s.logger.Debug("devhost: upgrade failed", "error", err)
		return
	}

	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()
	go s.serveWebSocket(ctx, conn)
}

func (s *Server) serveWebSocket(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()

	c := newWSConn(conn, s)
	id := s.conns.add(c)
	c.id = id
	defer s.conns.remove(id)
	defer s.limiter.Forget(id)

	errCh := make(chan error, 2)
	go func() { errCh <- c.readLoop(ctx) }()
	go func() { errCh <- c.writeLoop(ctx) }()

	if err := <-errCh; err != nil {
		s.logger.Debug("devhost: connection ended", "error", err)
	}
	_ = c.Close()
}
