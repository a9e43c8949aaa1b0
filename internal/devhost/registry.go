package devhost

import (
	"io"
	"sync"

	"github.com/leonletto/huddle/internal/identity"
)

// connRegistry tracks open client connections so Stop can close them.
type connRegistry struct {
	mu    sync.Mutex
	conns map[string]io.Closer
}

func newConnRegistry() *connRegistry {
	return &connRegistry{conns: make(map[string]io.Closer)}
}

// add registers c and returns the id to remove it with.
func (r *connRegistry) add(c io.Closer) string {
	id := identity.NewRequestID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = c
	return id
}

func (r *connRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Count returns the number of open connections.
func (r *connRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every open connection.
func (r *connRegistry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]io.Closer)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
