// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	chatctl "github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// TurnDoneMsg reports the end of a submitted turn, successful or not.
type TurnDoneMsg struct {
	Outcome *chatctl.Outcome
	Err     error
}

// =============================================================================
// MODEL MESSAGES
// =============================================================================

// ModelsMsg delivers the installed model list after discovery, a refresh or
// a pull.
type ModelsMsg struct {
	Op     string // "discover", "list", "pull"
	Models []ollama.ModelInfo
	Err    error
}

// =============================================================================
// STORE MESSAGES
// =============================================================================

// StoreEventMsg wraps a store change so the view can re-read the store.
type StoreEventMsg struct {
	Event store.Event
}

// =============================================================================
// CLIPBOARD AND EXPORT MESSAGES
// =============================================================================

// CopyDoneMsg reports a clipboard copy.
type CopyDoneMsg struct {
	Chars int
	Err   error
}

// ExportDoneMsg reports a transcript export.
type ExportDoneMsg struct {
	Path string
	Err  error
}
