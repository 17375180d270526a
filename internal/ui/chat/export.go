// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/export"
)

// =============================================================================
// EXPORT AND COPY HANDLERS
// =============================================================================

// exportCurrent writes the selected conversation as a JSON file into the
// export directory.
func (m Model) exportCurrent() tea.Cmd {
	conv := m.store.Current()
	modelName := m.ctrl.SelectedModel()
	dir := m.exportDir

	opts := export.DefaultOptions()
	opts.Theme = m.theme.Name()

	return func() tea.Msg {
		exporter, err := export.ForFormat("json", opts)
		if err != nil {
			return ExportDoneMsg{Err: err}
		}
		path, err := export.WriteFile(dir, export.NewDocument(conv, modelName), exporter)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// copyLastResponse puts the latest assistant reply of the selected
// conversation on the clipboard.
func (m Model) copyLastResponse() (tea.Model, tea.Cmd) {
	msg, ok := m.store.Current().LastAssistantMessage()
	if !ok || msg.Content == "" {
		m.notice = "No response to copy"
		return m, nil
	}

	content := msg.Content
	return m, func() tea.Msg {
		if err := copyToClipboard(content); err != nil {
			return CopyDoneMsg{Err: err}
		}
		return CopyDoneMsg{Chars: len([]rune(content))}
	}
}
