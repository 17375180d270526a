// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command handlers for ollama-chat.
//
// Command: config [subcommand]
//
// Subcommands:
//   (none)              Show the effective configuration
//   path                Print the config file path
//   get KEY             Print one value
//   set KEY VALUE       Change one value in the config file
//   keys                List settable keys
//
// Examples:
//   ollama-chat config set ollama.default_model llama3.2
//   ollama-chat config set generation.temperature 0.3
//   ollama-chat config get ui.theme

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Show or change configuration.

Without a subcommand the effective configuration is printed: the config
file, then OLLAMA_CHAT_* environment variables, then command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return NewJSONResponse("config", cfg).Write(out)
			}

			fmt.Fprintf(out, "# %s\n\n", path)
			if err := toml.NewEncoder(out).Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := configPath(opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one configuration value",
			Args:  keyArgs(1, "ollama-chat config get ollama.url"),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := loadConfig(opts)
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return unknownKey(args[0], err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one value in the config file",
			Args:  keyArgs(2, "ollama-chat config set generation.temperature 0.3"),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setConfigValue(cmd, opts, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List configuration keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				for _, k := range config.GetAllKeys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			},
		},
	)
	return cmd
}

func keyArgs(n int, example string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return ErrMissingArgument("key", example)
		}
		return nil
	}
}

func configPath(opts *globalOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	return config.ConfigPathTOML()
}

// setConfigValue edits only what the file holds. Environment and flag
// overrides are not written back.
func setConfigValue(cmd *cobra.Command, opts *globalOptions, key, value string) error {
	path, err := configPath(opts)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return fmt.Errorf("failed to load config %s: %w", path, err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return statErr
	}

	if _, err := cfg.Get(key); err != nil {
		return unknownKey(key, err)
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func unknownKey(key string, err error) error {
	return &ValidationError{
		Field:   "key",
		Value:   key,
		Reason:  err.Error(),
		Example: "run 'ollama-chat config keys' for the list",
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case config.Duration:
		return val.Std().String()
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
