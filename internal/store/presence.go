package store

import (
	"slices"
	"strings"

	"github.com/leonletto/huddle/internal/types"
)

// UpsertPresence stores p as the single row for its user.
func (s *Store) UpsertPresence(p types.Presence) {
	s.mu.Lock()
	s.presence[p.UserID] = p
	s.mu.Unlock()
	s.notify(Change{Collection: CollectionPresence, Op: "upsert", ID: p.UserID})
}

// PresenceOf returns the row for userID.
func (s *Store) PresenceOf(userID string) (types.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[userID]
	return p, ok
}

// Presence returns every presence row ordered by user id.
func (s *Store) Presence() []types.Presence {
	s.mu.RLock()
	out := make([]types.Presence, 0, len(s.presence))
	for _, p := range s.presence {
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.Presence) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}
