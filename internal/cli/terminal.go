// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for ollama-chat.
//
// The root command starts the full-screen UI only when both stdin and stdout
// are terminals; otherwise it falls back to the line-mode chat, which also
// reads piped input. Stdout and stderr get separate color decisions so
// `ollama-chat chat > log.txt` still shows red errors on the terminal.

package cli

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// IsTTY reports whether stdin is a terminal (liner needs one).
func IsTTY() bool { return isTerminal(os.Stdin) }

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool { return isTerminal(os.Stdout) }

// IsStderrTTY reports whether stderr is a terminal.
func IsStderrTTY() bool { return isTerminal(os.Stderr) }

// isInteractive is swapped out in tests.
var isInteractive = func() bool {
	return IsTTY() && IsStdoutTTY()
}

// =============================================================================
// WIDTH
// =============================================================================

const (
	defaultTerminalWidth = 80
	minTerminalWidth     = 40
)

// GetTerminalWidth returns the stdout width, 80 when unknown and never less
// than 40. Used to wrap rendered replies and separators.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return max(width, minTerminalWidth)
}

// =============================================================================
// COLOR
// =============================================================================

// colorsAllowed applies the environment to a terminal check. NO_COLOR
// (https://no-color.org/) beats FORCE_COLOR, which beats detection.
func colorsAllowed(getenv func(string) string, terminal bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	return terminal
}

var (
	stdoutColors     bool
	stdoutColorsOnce sync.Once
)

// ColorsEnabled reports whether stdout output may carry ANSI colors.
func ColorsEnabled() bool {
	stdoutColorsOnce.Do(func() {
		stdoutColors = colorsAllowed(os.Getenv, IsStdoutTTY())
	})
	return stdoutColors
}

// GetColorProfile returns the termenv profile for stdout, Ascii when colors
// are off.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// stderrRenderer styles text bound for stderr with its own profile.
var stderrRenderer = lipgloss.NewRenderer(os.Stderr)

// paint renders text with style only when w is stdout or stderr and that
// stream may carry colors. Buffers, pipes and files get plain text.
func paint(w io.Writer, style lipgloss.Style, text string) string {
	f, ok := w.(*os.File)
	switch {
	case !ok:
		return text
	case f == os.Stdout && ColorsEnabled():
		return style.Render(text)
	case f == os.Stderr && colorsAllowed(os.Getenv, IsStderrTTY()):
		return style.Renderer(stderrRenderer).Render(text)
	}
	return text
}
