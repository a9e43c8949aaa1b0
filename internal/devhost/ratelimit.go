package devhost

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/leonletto/huddle/internal/transport"
)

// ErrRateLimited is the outer frame error for a connection over its budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig bounds how fast one connection may issue commands. A
// non-positive RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// WithRateLimit limits every connection to cfg.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(s *Server) {
		s.limiter = newFrameLimiter(cfg)
	}
}

// frameLimiter keeps one token bucket per connection.
type frameLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func newFrameLimiter(cfg RateLimitConfig) *frameLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	return &frameLimiter{limiters: make(map[string]*rate.Limiter), cfg: cfg}
}

// Allow reports whether connID may issue one more command. A nil limiter
// allows everything.
func (l *frameLimiter) Allow(connID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[connID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
		l.limiters[connID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the bucket of a closed connection.
func (l *frameLimiter) Forget(connID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.limiters, connID)
	l.mu.Unlock()
}

// answer replies to one frame from connID, refusing it when the connection
// is over its budget.
func (s *Server) answer(ctx context.Context, connID string, data []byte) ([]byte, bool) {
	if s.limiter.Allow(connID) {
		return handleFrame(ctx, s.exec, s.logger, data)
	}

	var req transport.OutboundFrame
	if err := json.Unmarshal(data, &req); err != nil || req.RequestID == "" {
		return nil, false
	}
	s.logger.Warn("devhost: rate limited", "conn", connID, "command_id", req.CommandID)
	out, err := json.Marshal(transport.InboundFrame{
		Type:      transport.TypeResponse,
		RequestID: req.RequestID,
		Error:     ErrRateLimited.Error(),
	})
	if err != nil {
		return nil, false
	}
	return out, true
}
