// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat client for ollama-chat.

The package implements the interface with the Bubble Tea framework. It is a
render layer only: conversations live in the store and turns go through the
chat controller, so the same session can be driven from the HTTP API.

# Key Components

## Model (model.go)

The Model struct is the Bubble Tea model:
  - Conversation sidebar with the current conversation highlighted
  - Message viewport, assistant replies rendered as markdown with glamour
  - Multi-line input that is disabled while a turn is in flight
  - Error banner for backend failures

## Update Loop (update.go)

Keyboard handling, turn results, model discovery and store change events.
Every store change re-renders from the store.

## Overlays (overlay.go)

Model picker (select an installed model or pull a new one), settings panel,
rename prompt and key help.

# Usage

	m := chat.New(st, ctrl, cfg.Settings(), styles.NewTheme(styles.ModeAuto),
		chat.WithContext(ctx),
		chat.WithExportDir(cfg.UI.ExportDir),
	)
	defer m.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
*/
package chat
