// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// =============================================================================
// CHANGE EVENTS
// =============================================================================

// EventKind names the operation that changed the store.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventSelected EventKind = "selected"
	EventDeleted  EventKind = "deleted"
	EventRenamed  EventKind = "renamed"
	EventAppended EventKind = "appended"
	EventCleared  EventKind = "cleared"
)

// Event tells subscribers that something changed. It carries no state:
// subscribers re-read the store.
type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID int       `json:"conversation_id"`
}

// subscriberBuffer is the per-subscriber queue length. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 64

// Subscribe registers for change events. The returned function unsubscribes
// and closes the channel; it is safe to call more than once.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// publishLocked fans an event out without blocking the mutating caller.
func (s *Store) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
