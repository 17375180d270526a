// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the in-memory collection of conversations and the
// current selection.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jeranaias/ollama-chat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when an operation names a conversation that
	// does not exist. The store is left unchanged.
	ErrNotFound = errors.New("conversation not found")

	// ErrLastConversationProtected is returned when deleting the only
	// remaining conversation.
	ErrLastConversationProtected = errors.New("cannot delete the last conversation")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the single source of truth for conversations.
//
// The collection is never empty and the current ID always names a member of
// it. Every method is safe for concurrent use and runs to completion under
// one lock, so no caller ever observes a half-applied operation.
type Store struct {
	mu sync.Mutex

	// Collection order: most recently created first.
	conversations []*model.Conversation
	currentID     int

	subs    map[int]chan Event
	nextSub int
}

// New creates a store seeded with one empty conversation (ID 1) selected.
func New() *Store {
	seed := model.NewConversation(1)
	return &Store{
		conversations: []*model.Conversation{&seed},
		currentID:     seed.ID,
		subs:          make(map[int]chan Event),
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create allocates a new conversation, puts it at the front of the
// collection, selects it and returns its ID.
func (s *Store) Create() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.maxIDLocked() + 1
	conv := model.NewConversation(id)
	s.conversations = append([]*model.Conversation{&conv}, s.conversations...)
	s.currentID = id

	s.publishLocked(Event{Kind: EventCreated, ConversationID: id})
	return id
}

// Select makes id the current conversation.
func (s *Store) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) < 0 {
		return ErrNotFound
	}
	s.currentID = id

	s.publishLocked(Event{Kind: EventSelected, ConversationID: id})
	return nil
}

// Delete removes a conversation. The last remaining conversation cannot be
// deleted. When the current conversation is removed the selection moves to
// the first conversation left in the collection.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	if len(s.conversations) == 1 {
		return ErrLastConversationProtected
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.currentID == id {
		s.currentID = s.conversations[0].ID
	}

	s.publishLocked(Event{Kind: EventDeleted, ConversationID: id})
	return nil
}

// Rename replaces the title of a conversation.
func (s *Store) Rename(id int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	s.conversations[idx].Title = title

	s.publishLocked(Event{Kind: EventRenamed, ConversationID: id})
	return nil
}

// AppendMessage adds msg to the end of a conversation and bumps its
// timestamp. Appending to an empty conversation also derives its title from
// the message content. Appending to a conversation that no longer exists is a
// no-op that returns ErrNotFound.
func (s *Store) AppendMessage(id int, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return ErrNotFound
	}

	conv := s.conversations[idx]
	if len(conv.Messages) == 0 {
		conv.Title = model.DeriveTitle(msg.Content)
	}
	conv.Messages = append(conv.Messages, msg)
	conv.Timestamp = time.Now()

	s.publishLocked(Event{Kind: EventAppended, ConversationID: id})
	return nil
}

// Clear empties a conversation and restores the default title.
func (s *Store) Clear(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return ErrNotFound
	}

	conv := s.conversations[idx]
	conv.Messages = make([]model.Message, 0)
	conv.Title = model.DefaultTitle

	s.publishLocked(Event{Kind: EventCleared, ConversationID: id})
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Current returns a copy of the current conversation.
func (s *Store) Current() model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversations[s.findLocked(s.currentID)].Clone()
}

// CurrentID returns the ID of the current conversation.
func (s *Store) CurrentID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Get returns a copy of the conversation with the given ID.
func (s *Store) Get(id int) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return model.Conversation{}, ErrNotFound
	}
	return s.conversations[idx].Clone(), nil
}

// Exists reports whether a conversation with the given ID is present.
func (s *Store) Exists(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id) >= 0
}

// List returns copies of all conversations in collection order.
func (s *Store) List() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// =============================================================================
// HELPERS
// =============================================================================

// findLocked returns the collection index of id, or -1.
func (s *Store) findLocked(id int) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) maxIDLocked() int {
	highest := 0
	for _, c := range s.conversations {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return highest
}
