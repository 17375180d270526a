// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ollama-chat command line.
//
// The command tree is built with cobra. Every chat-capable command builds
// the same runtime (config, logger, tracing, conversation store and chat
// controller) and then attaches one front end to it: the full-screen
// interface, the line-mode chat or the HTTP server.
//
// # Commands
//
//   - (none): full-screen chat on a terminal, line-mode chat otherwise
//   - chat: line-mode chat with slash commands
//   - models, pull: list and download models
//   - serve: HTTP API for a browser front end
//   - config: show, get and set configuration values
//   - status: check the Ollama connection
//   - version: build information
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	os.Exit(cli.Execute(ctx, os.Args[1:]))
//
// Errors are printed once by Execute and mapped to exit codes; see
// GetExitCode.
package cli
