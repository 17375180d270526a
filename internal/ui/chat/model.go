// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	chatctl "github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/store"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Starters are offered on an empty conversation.
var Starters = []string{
	"Tell me a joke",
	"Tell me how you are doing",
	"How is your day going?",
}

const (
	inputHeight  = 3
	headerHeight = 1
	statusHeight = 1

	// inputChrome is the input box border plus padding rows.
	inputChrome = 2
)

// overlayKind is the panel drawn over the chat, if any.
type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayModels
	overlaySettings
	overlayRename
	overlayHelp
)

// banner is an error shown above the input until dismissed. A persistent
// banner survives later successful turns.
type banner struct {
	text       string
	persistent bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the terminal chat client. It renders the
// store and drives the controller; it owns no conversation state itself.
type Model struct {
	store    *store.Store
	ctrl     *chatctl.Controller
	settings model.Settings

	ctx       context.Context
	logger    *zap.Logger
	exportDir string
	onSave    func(model.Settings) error

	events      <-chan store.Event
	unsubscribe func()

	theme  *styles.Theme
	keyMap KeyMap
	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	// renderer is rebuilt when the width or theme changes.
	renderer      *glamour.TermRenderer
	rendererWidth int
	rendererStyle string

	inFlight     bool
	inFlightConv int
	banner       *banner
	notice       string
	starter      int

	overlay overlayKind
	picker  modelPicker
	form    settingsForm
	rename  textinput.Model
}

// Option configures a Model.
type Option func(*Model)

// WithContext bounds every backend call the UI makes.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithExportDir sets where exported transcripts are written.
func WithExportDir(dir string) Option {
	return func(m *Model) {
		m.exportDir = dir
	}
}

// WithSettingsSaver is called after the settings panel is saved, so the
// new values can be persisted.
func WithSettingsSaver(fn func(model.Settings) error) Option {
	return func(m *Model) {
		m.onSave = fn
	}
}

// WithKeyMap replaces the default key bindings.
func WithKeyMap(k KeyMap) Option {
	return func(m *Model) {
		m.keyMap = k
	}
}

// New creates the chat model. It subscribes to st immediately; call Close
// once the program has exited.
func New(st *store.Store, ctrl *chatctl.Controller, settings model.Settings, theme *styles.Theme, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		store:    st,
		ctrl:     ctrl,
		settings: settings,
		ctx:      context.Background(),
		logger:   zap.NewNop(),
		theme:    theme,
		keyMap:   DefaultKeyMap(),
		viewport: viewport.New(0, 0),
		input:    ta,
		spinner:  sp,
		rename:   textinput.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	m.events, m.unsubscribe = st.Subscribe()
	return m
}

// Init discovers installed models and starts listening for store changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.discoverModels(),
		waitForEvent(m.events),
	)
}

// Close stops the store subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Settings returns the generation settings the next turn will use.
func (m Model) Settings() model.Settings {
	return m.settings
}

// Theme returns the active theme.
func (m Model) Theme() *styles.Theme {
	return m.theme
}

// canSubmit reports whether the send affordance is enabled.
func (m Model) canSubmit() bool {
	return !m.inFlight && m.ctrl.SelectedModel() != ""
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent turns the next store event into a message. It returns nil
// once the subscription is closed.
func waitForEvent(events <-chan store.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return StoreEventMsg{Event: ev}
	}
}

func (m Model) submitTurn(conversationID int, text string) tea.Cmd {
	ctx, ctrl, settings := m.ctx, m.ctrl, m.settings
	return func() tea.Msg {
		outcome, err := ctrl.SubmitTurn(ctx, conversationID, text, settings)
		return TurnDoneMsg{Outcome: outcome, Err: err}
	}
}

func (m Model) discoverModels() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		models, err := ctrl.DiscoverModels(ctx)
		return ModelsMsg{Op: "discover", Models: models, Err: err}
	}
}

func (m Model) refreshModels() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		models, err := ctrl.ListModels(ctx)
		return ModelsMsg{Op: "list", Models: models, Err: err}
	}
}

func (m Model) pullModel(name string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		models, err := ctrl.PullModel(ctx, name)
		return ModelsMsg{Op: "pull", Models: models, Err: err}
	}
}
