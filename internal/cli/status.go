// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for ollama-chat.
//
// Command: status
// Short:   Check the Ollama connection and local setup
// Aliases: s
//
// Examples:
//   ollama-chat status            Show status
//   ollama-chat status --json     Status in JSON format
//
// Output Fields:
//   Ollama     Reachable or not, and the URL in use
//   Models     Number of installed models
//   Default    Model selected at startup
//   Config     Config file path and whether it exists
//   Log File   Where the chat interface writes its log

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/config"
)

// statusCheckTimeout bounds the Ollama probes.
const statusCheckTimeout = 5 * time.Second

// StatusData is the --json payload of the status command.
type StatusData struct {
	OllamaURL     string `json:"ollama_url"`
	OllamaRunning bool   `json:"ollama_running"`
	OllamaError   string `json:"ollama_error,omitempty"`
	ModelCount    int    `json:"model_count"`
	DefaultModel  string `json:"default_model"`
	ConfigPath    string `json:"config_path"`
	ConfigExists  bool   `json:"config_exists"`
	LogFile       string `json:"log_file"`
	Version       string `json:"version"`
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Check the Ollama connection and local setup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, logToStderr)
			if err != nil {
				return err
			}
			defer a.Close()

			data := collectStatus(cmd.Context(), a)
			if jsonOut {
				return NewJSONResponse("status", data).Write(cmd.OutOrStdout())
			}
			printStatus(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// collectStatus probes Ollama and gathers the local paths.
func collectStatus(ctx context.Context, a *app) StatusData {
	data := StatusData{
		OllamaURL:    a.client.BaseURL(),
		DefaultModel: a.cfg.Ollama.DefaultModel,
		ConfigPath:   a.cfgPath,
		LogFile:      a.cfg.Log.File,
		Version:      Version,
	}
	if data.LogFile == "" {
		data.LogFile = "(stderr; chat interface: " + config.DefaultLogFile() + ")"
	}
	if _, err := os.Stat(a.cfgPath); err == nil {
		data.ConfigExists = true
	}

	ctx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	if err := a.client.CheckRunning(ctx); err != nil {
		data.OllamaError = err.Error()
		return data
	}
	data.OllamaRunning = true

	if models, err := a.ctrl.ListModels(ctx); err == nil {
		data.ModelCount = len(models)
	}
	return data
}

func printStatus(w io.Writer, d StatusData) {
	fmt.Fprintln(w, TitleStyle.Render("ollama-chat Status"))
	fmt.Fprintln(w, RenderSeparator())

	conn := RenderStatus("ok") + " " + ValueStyle.Render("Running")
	if !d.OllamaRunning {
		conn = RenderStatus("fail") + " " + ErrorStyle.Render("Not reachable")
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Ollama:"), conn)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("URL:"), ValueStyle.Render(d.OllamaURL))
	if d.OllamaError != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel(""), DimStyle.Render(d.OllamaError))
		fmt.Fprintf(w, "%s%s\n", RenderLabel(""), DimStyle.Render("Start it with: ollama serve"))
	}

	if d.OllamaRunning {
		models := fmt.Sprintf("%d installed", d.ModelCount)
		if d.ModelCount == 0 {
			models = WarningStyle.Render("none installed, run: ollama-chat pull llama3.2")
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Models:"), models)
	}

	def := d.DefaultModel
	if def == "" {
		def = "(first installed)"
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Default model:"), ValueStyle.Render(def))

	cfg := d.ConfigPath
	if !d.ConfigExists {
		cfg += DimStyle.Render(" (not created, using defaults)")
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Config:"), cfg)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Log file:"), d.LogFile)
	fmt.Fprintln(w, RenderSeparator())
}
