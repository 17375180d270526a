// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	chatctl "github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/store"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all messages for the chat model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.inFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StoreEventMsg:
		return m.handleStoreEvent(msg.Event)

	case TurnDoneMsg:
		return m.handleTurnDone(msg)

	case ModelsMsg:
		return m.handleModels(msg)

	case CopyDoneMsg:
		if msg.Err != nil {
			m.notice = "Failed to copy: " + msg.Err.Error()
		} else {
			m.notice = "Copied response to clipboard (" + formatChars(msg.Chars) + ")"
		}
		m.layout()
		return m, nil

	case ExportDoneMsg:
		if msg.Err != nil {
			m.logger.Warn("export failed", zap.Error(msg.Err))
			m.notice = "Export failed: " + msg.Err.Error()
		} else {
			m.notice = "Exported to " + msg.Path
		}
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize recomputes the layout for a new terminal size.
func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.ready = true
	m.layout()
	m.refresh(true)
}

// layout sizes the viewport and input to the space left by the chrome.
func (m *Model) layout() {
	mainWidth := m.mainWidth()
	m.input.SetWidth(max(mainWidth-4, 10))

	// Rows between the viewport and the input.
	bannerRows := 0
	if m.banner != nil {
		bannerRows = 1
	}
	if m.notice != "" {
		bannerRows++
	}
	if m.inFlight {
		bannerRows++
	}
	vpHeight := m.height - headerHeight - statusHeight - inputHeight - inputChrome - bannerRows
	m.viewport.Width = mainWidth
	m.viewport.Height = max(vpHeight, 1)
}

func (m Model) mainWidth() int {
	return max(m.width-m.theme.SidebarWidth(), 20)
}

// =============================================================================
// KEYS
// =============================================================================

// handleKey routes a key press and then re-lays out, since most keys can
// show or hide a banner or notice row.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	next, cmd := m.routeKey(msg)
	if nm, ok := next.(Model); ok {
		nm.layout()
		return nm, cmd
	}
	return next, cmd
}

func (m Model) routeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayModels:
		return m.handlePickerKey(msg)
	case overlaySettings:
		return m.handleSettingsKey(msg)
	case overlayRename:
		return m.handleRenameKey(msg)
	case overlayHelp:
		m.overlay = overlayNone
		return m, nil
	}

	// Any key clears the last notice.
	m.notice = ""

	switch {
	case key.Matches(msg, m.keyMap.Dismiss):
		m.banner = nil
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Starter):
		if m.showStarters() {
			m.starter = (m.starter + 1) % len(Starters)
			m.refresh(false)
			return m, nil
		}

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.NewConversation):
		m.store.Create()
		return m, nil

	case key.Matches(msg, m.keyMap.PrevConversation):
		m.stepConversation(-1)
		return m, nil

	case key.Matches(msg, m.keyMap.NextConversation):
		m.stepConversation(1)
		return m, nil

	case key.Matches(msg, m.keyMap.RenameConversation):
		m.openRename()
		return m, nil

	case key.Matches(msg, m.keyMap.DeleteConversation):
		m.deleteCurrent()
		return m, nil

	case key.Matches(msg, m.keyMap.ClearConversation):
		if err := m.store.Clear(m.store.CurrentID()); err != nil {
			m.notice = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Models):
		m.picker.open(m.ctrl.Models(), m.ctrl.SelectedModel())
		m.overlay = overlayModels
		return m, nil

	case key.Matches(msg, m.keyMap.Settings):
		m.form = newSettingsForm(m.settings)
		m.overlay = overlaySettings
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleTheme):
		m.theme = m.theme.Toggled()
		m.spinner.Style = m.theme.Spinner
		m.refresh(false)
		return m, nil

	case key.Matches(msg, m.keyMap.Copy):
		return m.copyLastResponse()

	case key.Matches(msg, m.keyMap.Export):
		return m, m.exportCurrent()

	case key.Matches(msg, m.keyMap.Help):
		m.overlay = overlayHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or the highlighted starter when the input is
// empty on an empty conversation. It does nothing while the send affordance
// is disabled; local validation failures never become banners.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.canSubmit() {
		if m.ctrl.SelectedModel() == "" {
			m.notice = "Select a model first (" + m.keyMap.Models.Help().Key + ")"
		}
		return m, nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" && m.showStarters() {
		text = Starters[m.starter]
	}
	if text == "" {
		return m, nil
	}

	convID := m.store.CurrentID()
	m.input.Reset()
	m.inFlight = true
	m.inFlightConv = convID
	if m.banner != nil && !m.banner.persistent {
		m.banner = nil
	}
	m.layout()
	m.refresh(true)

	return m, tea.Batch(m.submitTurn(convID, text), m.spinner.Tick)
}

func (m *Model) stepConversation(delta int) {
	convs := m.store.List()
	if len(convs) < 2 {
		return
	}
	current := m.store.CurrentID()
	idx := 0
	for i, c := range convs {
		if c.ID == current {
			idx = i
			break
		}
	}
	next := convs[(idx+delta+len(convs))%len(convs)]
	if err := m.store.Select(next.ID); err != nil {
		m.notice = err.Error()
	}
}

// deleteCurrent deletes the selected conversation. The affordance is off
// when it is the only one.
func (m *Model) deleteCurrent() {
	if m.store.Len() <= 1 {
		m.notice = "The last conversation can't be deleted"
		return
	}
	if err := m.store.Delete(m.store.CurrentID()); err != nil {
		m.notice = err.Error()
	}
}

func (m *Model) openRename() {
	m.rename.Prompt = "title: "
	m.rename.CharLimit = 100
	m.rename.SetValue(m.store.Current().Title)
	m.rename.CursorEnd()
	m.rename.Focus()
	m.input.Blur()
	m.overlay = overlayRename
}

func (m *Model) closeOverlay() {
	m.overlay = overlayNone
	m.rename.Blur()
	m.input.Focus()
}

// =============================================================================
// OVERLAY KEYS
// =============================================================================

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "up":
		m.picker.move(-1)
		return m, nil
	case "down":
		m.picker.move(1)
		return m, nil
	case "ctrl+r":
		return m, m.refreshModels()
	case "enter":
		if name := strings.TrimSpace(m.picker.pull.Value()); name != "" {
			if m.picker.pulling != "" {
				return m, nil
			}
			m.picker.pulling = name
			m.picker.pull.Reset()
			return m, m.pullModel(name)
		}
		mi, ok := m.picker.highlighted()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.SelectModel(mi.Name); err != nil {
			m.notice = err.Error()
		} else {
			m.notice = "Model: " + mi.Name
		}
		m.closeOverlay()
		return m, nil
	}

	var cmd tea.Cmd
	m.picker.pull, cmd = m.picker.pull.Update(msg)
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "tab", "down":
		m.form.setFocus(m.form.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.form.setFocus(m.form.focus - 1)
		return m, nil
	case "enter":
		next, err := m.form.values(m.settings)
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.settings = next
		if m.onSave != nil {
			if err := m.onSave(next); err != nil {
				m.logger.Warn("saving settings failed", zap.Error(err))
				m.notice = "Settings applied but not saved: " + err.Error()
			} else {
				m.notice = "Settings saved"
			}
		} else {
			m.notice = "Settings applied"
		}
		m.closeOverlay()
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeOverlay()
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.rename.Value())
		if title == "" {
			return m, nil
		}
		if err := m.store.Rename(m.store.CurrentID(), title); err != nil {
			m.notice = err.Error()
		}
		m.closeOverlay()
		return m, nil
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// =============================================================================
// RESULTS
// =============================================================================

func (m Model) handleStoreEvent(ev store.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case store.EventCreated, store.EventSelected, store.EventDeleted, store.EventCleared:
		m.starter = 0
	}
	m.refresh(true)
	return m, waitForEvent(m.events)
}

func (m Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.inFlight = false
	m.inFlightConv = 0

	if msg.Err != nil {
		var turnErr *chatctl.TurnError
		if errors.As(msg.Err, &turnErr) {
			m.banner = &banner{text: turnErr.UserMessage()}
		} else {
			// Precondition failures are local and shown as a notice only.
			m.notice = msg.Err.Error()
		}
	} else if msg.Outcome != nil && msg.Outcome.Discarded {
		m.notice = "Reply discarded: the conversation was deleted"
	}

	m.layout()
	m.refresh(true)
	return m, nil
}

func (m Model) handleModels(msg ModelsMsg) (tea.Model, tea.Cmd) {
	if msg.Op == "pull" {
		m.picker.pulling = ""
	}

	if msg.Err != nil {
		var turnErr *chatctl.TurnError
		switch {
		case errors.As(msg.Err, &turnErr):
			m.banner = &banner{
				text:       turnErr.UserMessage(),
				persistent: turnErr.Kind == chatctl.KindModelDiscoveryFailed,
			}
		default:
			m.notice = msg.Err.Error()
		}
		m.layout()
		return m, nil
	}

	if m.overlay == overlayModels {
		m.picker.open(msg.Models, m.ctrl.SelectedModel())
	}
	if msg.Op == "pull" {
		m.notice = fmt.Sprintf("Pulled model (%d installed)", len(msg.Models))
		m.layout()
	}
	m.refresh(false)
	return m, nil
}
