// Package store holds the client-side cache of workspace entities. The
// Store is the single place collections are mutated and the single point
// views subscribe to.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/leonletto/huddle/internal/types"
)

// Collection names the part of the store a change touched.
type Collection string

const (
	CollectionTasks    Collection = "tasks"
	CollectionMessages Collection = "messages"
	CollectionPresence Collection = "presence"
	CollectionProject  Collection = "project"
	CollectionUser     Collection = "user"
)

// Change describes one applied mutation.
type Change struct {
	Collection Collection
	Op         string // "set", "add", "remove", "update", "move", "upsert", "reset"
	ID         string // entity id; empty for bulk operations
}

// Listener is notified after every mutation, outside the store lock.
// Listeners may read the store but should not block.
type Listener interface {
	StoreChanged(Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Change)

// StoreChanged calls f(c).
func (f ListenerFunc) StoreChanged(c Change) { f(c) }

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for stamping updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a subscribable state container. All methods are safe for
// concurrent use and never block on I/O.
type Store struct {
	mu       sync.RWMutex
	tasks    []types.Task
	messages []types.Message
	presence map[string]types.Presence
	project  *types.Project
	user     *types.User

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int

	now func() time.Time
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks:     []types.Task{},
		messages:  []types.Message{},
		presence:  make(map[string]types.Presence),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) notify(c Change) {
	s.listenerMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.listenerMu.Unlock()

	for _, l := range ls {
		l.StoreChanged(c)
	}
}

// Snapshot is a deep copy of the store at one instant.
type Snapshot struct {
	Tasks    []types.Task
	Messages []types.Message
	Presence map[string]types.Presence
	Project  *types.Project
	User     *types.User
}

// Snapshot returns a copy of every collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tasks:    cloneTasks(s.tasks),
		Messages: slices.Clone(s.messages),
		Presence: make(map[string]types.Presence, len(s.presence)),
	}
	for k, v := range s.presence {
		snap.Presence[k] = v
	}
	if s.project != nil {
		p := *s.project
		snap.Project = &p
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Reset clears tasks, messages and presence. Project and user are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	s.tasks = []types.Task{}
	s.messages = []types.Message{}
	s.presence = make(map[string]types.Presence)
	s.mu.Unlock()

	s.notify(Change{Collection: CollectionTasks, Op: "reset"})
	s.notify(Change{Collection: CollectionMessages, Op: "reset"})
	s.notify(Change{Collection: CollectionPresence, Op: "reset"})
}

// SetProject replaces the active project; nil clears it.
func (s *Store) SetProject(p *types.Project) {
	s.mu.Lock()
	if p == nil {
		s.project = nil
	} else {
		cp := *p
		s.project = &cp
	}
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionProject, Op: "set"})
}

// Project returns the active project, or nil.
func (s *Store) Project() *types.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return nil
	}
	p := *s.project
	return &p
}

// SetUser replaces the signed-in user; nil signs out.
func (s *Store) SetUser(u *types.User) {
	s.mu.Lock()
	if u == nil {
		s.user = nil
	} else {
		cp := *u
		s.user = &cp
	}
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionUser, Op: "set"})
}

// User returns the signed-in user, or nil.
func (s *Store) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func cloneTasks(in []types.Task) []types.Task {
	out := make([]types.Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
