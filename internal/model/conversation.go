// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultTitle is the title of a conversation that has no messages yet.
	DefaultTitle = "New Chat"

	// TitleMaxChars is how many characters of the first message become the title.
	TitleMaxChars = 30

	// titleEllipsis marks a truncated title.
	titleEllipsis = "..."
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat conversation with its history and metadata.
//
// The store hands out copies; mutating a returned Conversation has no effect
// on the store.
type Conversation struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// NewConversation creates an empty conversation with the default title.
func NewConversation(id int) Conversation {
	return Conversation{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  make([]Message, 0),
		Timestamp: time.Now(),
	}
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}

// MessageCount returns the number of messages.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the most recent message and whether there was one.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastAssistantMessage returns the most recent assistant message.
func (c Conversation) LastAssistantMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// =============================================================================
// TITLES
// =============================================================================

// DeriveTitle builds a conversation title from the first message content:
// the first TitleMaxChars characters, followed by "..." when the content is
// longer than that. Characters are counted on the NFC form so that composed
// and decomposed input truncate at the same place; short content is returned
// as given.
func DeriveTitle(content string) string {
	runes := []rune(norm.NFC.String(content))
	if len(runes) <= TitleMaxChars {
		return content
	}
	return string(runes[:TitleMaxChars]) + titleEllipsis
}

// PreviewLine returns the first line of s, trimmed. Used for one-line listings.
func PreviewLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
