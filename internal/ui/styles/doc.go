// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ollama-chat TUI.

All colors are Lip Gloss AdaptiveColor values. A Theme pins the default
renderer to dark or light so the same palette serves both, and the chat
view swaps themes at runtime when the user toggles.

# Color System (colors.go)

  - Purple - Assistant messages, selections, overlays
  - Cyan - Brand, user messages, prompts
  - Emerald - Success, the selected model
  - Amber - System messages, warnings
  - Rose - Errors and the error banner

# Themes (theme.go)

	theme := styles.NewTheme(styles.ParseMode(cfg.UI.Theme))
	theme.SetSize(width, height)
	next := theme.Toggled()
*/
package styles
