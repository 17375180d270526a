// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	bodyHeight := max(m.height-headerHeight-statusHeight, 1)

	var body string
	if m.overlay != overlayNone {
		body = placeOverlay(m.theme, m.width, bodyHeight, m.renderOverlay())
	} else {
		body = m.renderMain()
		if sw := m.theme.SidebarWidth(); sw > 0 {
			body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sw, bodyHeight), body)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderStatusBar(),
	)
}

// refresh re-renders the current conversation into the viewport.
func (m *Model) refresh(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.ensureRenderer()
	m.viewport.SetContent(m.renderConversation())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// ensureRenderer rebuilds the markdown renderer for the current width and
// theme. Without one, replies are shown as plain wrapped text.
func (m *Model) ensureRenderer() {
	width := max(m.viewport.Width-4, 20)
	style := m.theme.Name()
	if m.renderer != nil && m.rendererWidth == width && m.rendererStyle == style {
		return
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		m.renderer = nil
		return
	}
	m.renderer = r
	m.rendererWidth = width
	m.rendererStyle = style
}

// =============================================================================
// HEADER AND STATUS BAR
// =============================================================================

func (m Model) renderHeader() string {
	modelName := m.ctrl.SelectedModel()
	modelPart := m.theme.Muted.Render("no model")
	if modelName != "" {
		modelPart = m.theme.HeaderModel.Render(modelName)
	}

	title := m.store.Current().Title
	left := m.theme.HeaderBrand.Render("ollama-chat") + "  " + modelPart
	room := m.width - lipgloss.Width(left) - 4
	if room > 8 {
		left += "  " + truncateToWidth(title, room)
	}
	return m.theme.Header.Width(m.width).Render(left)
}

func (m Model) renderStatusBar() string {
	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	line := strings.Join(parts, "  ")

	if m.inFlight {
		line = m.theme.ThinkingText.Render("generating") + "  " + line
	}
	return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).MaxHeight(1).Render(line)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width, height int) string {
	inner := width - 3
	current := m.store.CurrentID()

	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	for _, c := range m.store.List() {
		title := truncateToWidth(c.Title, inner-1)
		if c.ID == current {
			b.WriteString(m.theme.SidebarItemSelected.Width(inner).Render(title))
		} else {
			b.WriteString(m.theme.SidebarItem.Width(inner).Render(title))
		}
		b.WriteString("\n")
		meta := fmt.Sprintf("%d msgs · %s", c.MessageCount(), formatTimestamp(c.Timestamp))
		b.WriteString(m.theme.SidebarMeta.Render(truncateToWidth(meta, inner-1)))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(width - 1).
		Height(height).
		MaxHeight(height).
		Render(b.String())
}

// =============================================================================
// MAIN PANE
// =============================================================================

func (m Model) renderMain() string {
	width := m.mainWidth()
	rows := []string{m.viewport.View()}

	if m.inFlight {
		text := "Thinking..."
		if m.inFlightConv != m.store.CurrentID() {
			text = "Waiting for a reply in another conversation..."
		}
		rows = append(rows, " "+m.spinner.View()+" "+m.theme.ThinkingText.Render(text))
	}
	if m.banner != nil {
		text := styles.StatusIndicators.Error + " " + m.banner.text + "  (Esc to dismiss)"
		rows = append(rows, m.theme.Banner.Width(width).Render(truncateToWidth(text, width-2)))
	}
	if m.notice != "" {
		rows = append(rows, m.theme.Notice.Render(truncateToWidth(m.notice, width-2)))
	}
	rows = append(rows, m.renderInput(width))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderInput(width int) string {
	box := m.theme.InputContainer
	if !m.canSubmit() {
		box = m.theme.InputContainerDisabled
	}
	return box.Width(width - 2).Render(m.input.View())
}

// renderConversation is the viewport content for the current conversation.
func (m Model) renderConversation() string {
	conv := m.store.Current()

	var b strings.Builder
	if m.showStarters() {
		b.WriteString(m.renderStarters())
	}
	for _, msg := range conv.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render("You")
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render("Assistant")
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}
	header := label + " " + m.theme.Timestamp.Render(formatTimestamp(msg.Timestamp))

	width := max(m.viewport.Width-4, 10)
	var content string
	if msg.Role == model.RoleAssistant && m.renderer != nil {
		rendered, err := m.renderer.Render(msg.Content)
		if err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	if content == "" {
		content = m.theme.MessageText.Width(width).Render(msg.Content)
	}

	return lipgloss.NewStyle().MarginLeft(1).Render(header + "\n" + content)
}

// showStarters reports whether starter prompts are offered.
func (m Model) showStarters() bool {
	return m.store.Current().IsEmpty() && strings.TrimSpace(m.input.Value()) == ""
}

func (m Model) renderStarters() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.theme.OverlayTitle.Render("  Start a conversation"))
	b.WriteString("\n")
	for i, s := range Starters {
		style := m.theme.Starter
		if i == m.starter {
			style = m.theme.StarterSelected
		}
		b.WriteString(lipgloss.NewStyle().MarginLeft(2).Render(style.Render(s)))
		b.WriteString("\n")
	}
	hint := "Tab to choose, Enter to send"
	if m.ctrl.SelectedModel() == "" {
		hint = "No model selected. Press " + m.keyMap.Models.Help().Key + " to pick one."
	}
	b.WriteString(m.theme.Muted.Render("  " + hint))
	b.WriteString("\n\n")
	return b.String()
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) renderOverlay() string {
	width := min(m.width-8, 72)
	switch m.overlay {
	case overlayModels:
		return m.picker.view(m.theme, m.ctrl.SelectedModel(), width)
	case overlaySettings:
		return m.form.view(m.theme)
	case overlayRename:
		return m.theme.OverlayTitle.Render("Rename conversation") + "\n" +
			m.rename.View() + "\n\n" +
			m.theme.Muted.Render("Enter save  Esc cancel")
	case overlayHelp:
		return m.renderHelp()
	}
	return ""
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.OverlayTitle.Render("Keys"))
	b.WriteString("\n")
	for i, group := range m.keyMap.FullHelp() {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, binding := range group {
			h := binding.Help()
			key := m.theme.ShortcutKey.Width(10).Render(h.Key)
			b.WriteString(key + m.theme.ShortcutDesc.Render(h.Desc) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render("Any key to close"))
	return b.String()
}
