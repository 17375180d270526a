// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// =============================================================================
// MODEL PICKER
// =============================================================================

// modelPicker lists installed models and takes a name to pull.
type modelPicker struct {
	models  []ollama.ModelInfo
	cursor  int
	pull    textinput.Model
	pulling string
}

// open resets the picker over models with the cursor on selected. A pull in
// progress is kept.
func (p *modelPicker) open(models []ollama.ModelInfo, selected string) {
	p.models = models
	p.cursor = 0
	for i, mi := range models {
		if mi.Name == selected {
			p.cursor = i
			break
		}
	}
	p.pull = textinput.New()
	p.pull.Prompt = "pull: "
	p.pull.Placeholder = "model name, e.g. llama3.2"
	p.pull.CharLimit = 128
	p.pull.Focus()
}

func (p *modelPicker) move(delta int) {
	if len(p.models) == 0 {
		return
	}
	p.cursor = (p.cursor + delta + len(p.models)) % len(p.models)
}

func (p modelPicker) highlighted() (ollama.ModelInfo, bool) {
	if p.cursor < 0 || p.cursor >= len(p.models) {
		return ollama.ModelInfo{}, false
	}
	return p.models[p.cursor], true
}

func (p modelPicker) view(theme *styles.Theme, selected string, width int) string {
	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render("Models"))
	b.WriteString("\n")

	if len(p.models) == 0 {
		b.WriteString(theme.Muted.Render("No models installed. Pull one below."))
		b.WriteString("\n")
	}
	for i := range p.models {
		mi := &p.models[i]
		mark := "     "
		if mi.Name == selected {
			mark = styles.StatusIndicators.Success + " "
		}
		line := fmt.Sprintf("%s%s  %s", mark, truncateToWidth(mi.Name, width-16), mi.FormatSize())
		if i == p.cursor {
			b.WriteString(theme.ListItemSelected.Render(line))
		} else {
			b.WriteString(theme.ListItem.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if p.pulling != "" {
		b.WriteString(theme.ThinkingText.Render("Pulling " + p.pulling + "..."))
	} else {
		b.WriteString(p.pull.View())
	}
	b.WriteString("\n\n")
	b.WriteString(theme.Muted.Render("Enter select/pull  C-r refresh  Esc close"))
	return b.String()
}

// =============================================================================
// SETTINGS FORM
// =============================================================================

const (
	fieldTemperature = iota
	fieldMaxTokens
	fieldSystemPrompt
	fieldStreaming
	fieldCount
)

// settingsForm edits a copy of the generation settings.
type settingsForm struct {
	inputs    []textinput.Model
	streaming bool
	focus     int
	err       string
}

func newSettingsForm(s model.Settings) settingsForm {
	mk := func(prompt, value string, limit int) textinput.Model {
		ti := textinput.New()
		ti.Prompt = prompt
		ti.CharLimit = limit
		ti.SetValue(value)
		return ti
	}
	f := settingsForm{
		inputs: []textinput.Model{
			mk("Temperature   ", strconv.FormatFloat(s.Temperature, 'f', -1, 64), 8),
			mk("Max tokens    ", strconv.Itoa(s.MaxTokens), 6),
			mk("System prompt ", s.SystemPrompt, 2000),
		},
		streaming: s.Streaming,
	}
	f.inputs[0].Focus()
	return f
}

func (f *settingsForm) setFocus(i int) {
	f.focus = (i + fieldCount) % fieldCount
	for j := range f.inputs {
		if j == f.focus {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

func (f settingsForm) update(msg tea.Msg) (settingsForm, tea.Cmd) {
	if f.focus >= len(f.inputs) {
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == " " || k.String() == "left" || k.String() == "right") {
			f.streaming = !f.streaming
		}
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// values parses the form over base. Any field that does not parse or is out
// of range is an error; nothing is clamped.
func (f settingsForm) values(base model.Settings) (model.Settings, error) {
	temp, err := strconv.ParseFloat(strings.TrimSpace(f.inputs[fieldTemperature].Value()), 64)
	if err != nil {
		return base, fmt.Errorf("temperature must be a number")
	}
	maxTokens, err := strconv.Atoi(strings.TrimSpace(f.inputs[fieldMaxTokens].Value()))
	if err != nil {
		return base, fmt.Errorf("max tokens must be a whole number")
	}

	next := base.
		WithTemperature(temp).
		WithMaxTokens(maxTokens).
		WithSystemPrompt(f.inputs[fieldSystemPrompt].Value()).
		WithStreaming(f.streaming)
	if err := next.Validate(); err != nil {
		return base, err
	}
	return next, nil
}

func (f settingsForm) view(theme *styles.Theme) string {
	var b strings.Builder
	b.WriteString(theme.OverlayTitle.Render("Settings"))
	b.WriteString("\n")
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	box := "[ ]"
	if f.streaming {
		box = "[x]"
	}
	streaming := "Streaming     " + box
	if f.focus == fieldStreaming {
		streaming = theme.ListItemSelected.Render(streaming)
	}
	b.WriteString(streaming)
	b.WriteString("\n")
	b.WriteString(theme.Muted.Render(fmt.Sprintf("temperature %.1f-%.1f, max tokens %d-%d",
		model.MinTemperature, model.MaxTemperature, model.MinMaxTokens, model.MaxMaxTokens)))
	b.WriteString("\n")

	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.RenderError(f.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(theme.Muted.Render("Tab next  Enter save  Esc cancel"))
	return b.String()
}

// =============================================================================
// PLACEMENT
// =============================================================================

// placeOverlay centers box over a width x height area.
func placeOverlay(theme *styles.Theme, width, height int, content string) string {
	box := theme.OverlayBox.Render(content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
