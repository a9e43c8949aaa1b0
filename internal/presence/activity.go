package presence

import (
	"sync"
)

// Activity is a kind of local input event.
type Activity string

const (
	ActivityPointer Activity = "pointer"
	ActivityKey     Activity = "key"
)

// ActivityFeed fans local input events out to registered listeners. The
// input layer calls Emit; heartbeats listen while they are active.
type ActivityFeed struct {
	mu        sync.Mutex
	listeners map[int]func(Activity)
	nextID    int
}

// NewActivityFeed creates a feed with no listeners.
func NewActivityFeed() *ActivityFeed {
	return &ActivityFeed{listeners: make(map[int]func(Activity))}
}

// Listen registers fn and returns a function that removes it.
func (f *ActivityFeed) Listen(fn func(Activity)) (remove func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Emit reports one input event to every listener.
func (f *ActivityFeed) Emit(a Activity) {
	f.mu.Lock()
	fns := make([]func(Activity), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}

// Listeners returns the number of registered listeners.
func (f *ActivityFeed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}
