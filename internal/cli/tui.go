// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Runs the full-screen chat interface.

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/config"
	uichat "github.com/jeranaias/ollama-chat/internal/ui/chat"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// runTUI opens the Bubble Tea program on the alternate screen. Logs go to
// a file for the whole run.
func runTUI(ctx context.Context, opts *globalOptions) error {
	a, err := newApp(ctx, opts, logToFile)
	if err != nil {
		return err
	}
	defer a.Close()

	theme := styles.NewTheme(styles.ParseMode(a.cfg.UI.Theme))
	initialTheme := theme.Name()

	m := uichat.New(a.store, a.ctrl, a.cfg.Settings(), theme,
		uichat.WithContext(ctx),
		uichat.WithLogger(a.logger.Named("ui")),
		uichat.WithExportDir(a.cfg.UI.ExportDir),
		uichat.WithSettingsSaver(a.saveSettings),
	)
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat interface: %w", err)
	}

	// A theme toggled during the session sticks.
	if fm, ok := final.(uichat.Model); ok {
		if name := fm.Theme().Name(); name != initialTheme {
			a.cfg.UI.Theme = name
			if err := config.SaveTOML(a.cfg, a.cfgPath); err != nil {
				a.logger.Warn("theme not saved", zap.Error(err))
			}
		}
	}
	return nil
}
