// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Only the three endpoints a chat client needs are covered: model listing
// (/api/tags), model download (/api/pull) and full-response chat (/api/chat).
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest: model, messages and generation options
//   - ChatResponse: assistant reply and timing metrics
//   - ClientError: typed failure (not running, timeout, bad response)
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL: "http://localhost:11434",
//	})
//	resp, err := client.Chat(ctx, ollama.ChatRequest{
//	    Model:    "llama3.2:3b",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	    Options:  &ollama.Options{Temperature: 0.7, NumPredict: 2048},
//	})
//	if ollama.IsNotRunning(err) {
//	    // start the server and retry by hand
//	}
package ollama
