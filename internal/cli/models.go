// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing and download commands.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// ModelData is one entry of `models --json`.
type ModelData struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	SizeHuman  string `json:"size_human"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Family     string `json:"family,omitempty"`
	Params     string `json:"parameter_size,omitempty"`
	Quant      string `json:"quantization,omitempty"`
}

func toModelData(m ollama.ModelInfo) ModelData {
	d := ModelData{
		Name:      m.Name,
		Size:      m.Size,
		SizeHuman: m.FormatSize(),
		Family:    m.Details.Family,
		Params:    m.Details.ParameterSize,
		Quant:     m.Details.QuantizationLevel,
	}
	if !m.ModifiedAt.IsZero() {
		d.ModifiedAt = m.ModifiedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return d
}

func newModelsCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls"},
		Short:   "List models installed in Ollama",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, logToStderr)
			if err != nil {
				return err
			}
			defer a.Close()

			models, err := a.ctrl.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				data := make([]ModelData, 0, len(models))
				for _, m := range models {
					data = append(data, toModelData(m))
				}
				return NewJSONResponse("models", data).Write(out)
			}

			if len(models) == 0 {
				fmt.Fprintln(out, "No models installed. Run: ollama-chat pull llama3.2")
				return nil
			}
			for _, m := range models {
				mark := " "
				if m.Name == a.cfg.Ollama.DefaultModel {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-36s %10s  %s\n", mark, m.Name, m.FormatSize(),
					DimStyle.Render(m.Details.ParameterSize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func newPullCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "pull NAME",
		Short:   "Download a model into Ollama",
		Example: "  ollama-chat pull llama3.2",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return ErrMissingArgument("model", "ollama-chat pull llama3.2")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, logToStderr)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pulling %s...\n", args[0])
			if _, err := a.ctrl.PullModel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Pulled %s\n", SuccessStyle.Render("[OK]"), args[0])
			return nil
		},
	}
}
