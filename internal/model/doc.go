// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the value types shared by the store, the chat
// controller, the exporters and every render layer.
//
// # Key Types
//
//   - Conversation: numbered chat with a title, ordered messages and a last-modified time
//   - Message: single message with role, content and timestamp
//   - Role: message role enumeration (system, user, assistant)
//   - Settings: generation parameters handed to each turn
//
// # Usage
//
// Derive a title the way the store does for a first message:
//
//	title := model.DeriveTitle("Tell me about the history of the printing press")
//	// "Tell me about the history of t..."
//
// Adjust settings without touching the original value:
//
//	s := model.DefaultSettings().WithTemperature(1.2)
//	if err := s.Validate(); err != nil {
//	    return err
//	}
package model
