package store

import (
	"slices"

	"github.com/leonletto/huddle/internal/identity"
	"github.com/leonletto/huddle/internal/types"
)

// MessagePatch is a shallow merge applied by UpdateMessage. Nil fields are
// left unchanged. ClearStatus removes the local delivery status.
type MessagePatch struct {
	Text        *string
	Status      *types.MessageStatus
	ClearStatus bool
}

// SetMessages replaces the message collection with a remote snapshot.
// Local-only rows and their delivery status are discarded.
func (s *Store) SetMessages(msgs []types.Message) {
	next := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if identity.IsTempID(m.ID) {
			continue
		}
		m.Status = ""
		next = append(next, m)
	}

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionMessages, Op: "set"})
}

// Messages returns a copy of the message collection.
func (s *Store) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Message returns the message with id.
func (s *Store) Message(id string) (types.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.messageIndex(id); i >= 0 {
		return s.messages[i], true
	}
	return types.Message{}, false
}

// AddMessage appends m.
func (s *Store) AddMessage(m types.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionMessages, Op: "add", ID: m.ID})
}

// RemoveMessage deletes the message with id. It reports whether one existed.
func (s *Store) RemoveMessage(id string) bool {
	s.mu.Lock()
	i := s.messageIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionMessages, Op: "remove", ID: id})
	return true
}

// UpdateMessage merges p into the message with id. Unknown ids are a no-op.
func (s *Store) UpdateMessage(id string, p MessagePatch) bool {
	s.mu.Lock()
	i := s.messageIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	m := &s.messages[i]
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.ClearStatus {
		m.Status = ""
	} else if p.Status != nil {
		m.Status = *p.Status
	}
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionMessages, Op: "update", ID: id})
	return true
}

// messageIndex must be called with mu held.
func (s *Store) messageIndex(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
