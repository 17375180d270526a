// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and global flags for ollama-chat.

package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	url        string
	model      string
	logLevel   string
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree. Running it without a subcommand opens
// the full-screen chat when attached to a terminal and the line-mode chat
// otherwise.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ollama-chat",
		Short: "Chat with local models served by Ollama",
		Long: `ollama-chat is a terminal chat client for a local Ollama server.

Keep several conversations side by side, switch models, tune generation
settings and export conversations as JSON, Markdown or HTML.

Run without arguments for the full-screen interface. When input or output
is not a terminal the line-mode chat is used instead, so prompts can be
piped in.`,
		Example: `  ollama-chat                          Open the chat interface
  ollama-chat -m llama3.2              Start with a specific model
  echo "Tell me a joke" | ollama-chat  Send piped prompts
  ollama-chat serve --addr :8080       Serve the HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if isInteractive() {
				return runTUI(cmd.Context(), opts)
			}
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.ollama-chat/config.toml)")
	flags.StringVar(&opts.url, "url", "", "Ollama server URL (overrides ollama.url)")
	flags.StringVarP(&opts.model, "model", "m", "", "model to select at startup")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ValidationError{Field: "flag", Reason: err.Error()}
	})

	root.AddCommand(
		newChatCmd(opts),
		newModelsCmd(opts),
		newPullCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		DisplayError(root.ErrOrStderr(), commandName(cmd), err, jsonFlag(cmd))
		return GetExitCode(err)
	}
	return ExitSuccess
}

func commandName(cmd *cobra.Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.Name()
}

func jsonFlag(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}

// =============================================================================
// VERSION
// =============================================================================

// VersionData is the --json payload of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}
			if jsonOut {
				return NewJSONResponse("version", data).Write(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ollama-chat %s (commit %s, built %s, %s)\n",
				data.Version, data.GitCommit, data.BuildDate, data.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}
