// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollama-chat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all sections
//   - OllamaConfig: Server URL, timeouts and the startup model
//   - GenerationConfig: Starting temperature, max tokens and system prompt
//   - ServerConfig: HTTP API address, CORS origins and rate limiting
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OLLAMA_CHAT_*), including those from ./.env
//   - ~/.ollama-chat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	settings := cfg.Settings()
//
// Follow edits to the file:
//
//	go config.Watch(ctx, path, func(cfg *config.Config) {
//	    settings.Store(cfg.Settings())
//	}, nil)
package config
