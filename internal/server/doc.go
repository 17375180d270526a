// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP API a browser front end drives.
//
// The API is a thin layer over the conversation store and the chat
// controller. It holds one generation settings value that every turn
// submitted through it uses.
//
// # Endpoints
//
//   - GET    /health                              - Liveness and Ollama probe
//   - GET    /api/conversations                   - All conversations, newest first
//   - POST   /api/conversations                   - New conversation (becomes current)
//   - GET    /api/conversations/current           - The selected conversation
//   - GET    /api/conversations/:id               - One conversation
//   - PUT    /api/conversations/:id/select        - Select
//   - PATCH  /api/conversations/:id               - Rename {"title"}
//   - DELETE /api/conversations/:id               - Delete (never the last one)
//   - POST   /api/conversations/:id/clear         - Remove all messages
//   - POST   /api/conversations/:id/turns         - Send {"content"} and wait for the reply
//   - GET    /api/conversations/:id/export        - ?format=json|markdown|html
//   - GET    /api/models                          - Installed models
//   - POST   /api/models/pull                     - Download {"name"}
//   - GET    /api/models/selected                 - Selected model
//   - PUT    /api/models/selected                 - Select {"name"}
//   - GET    /api/settings, PUT /api/settings     - Generation settings
//   - GET    /api/usage                           - Token usage this session
//   - GET    /api/events                          - WebSocket of store changes
//
// # Errors
//
// Errors are {"error": {"type", "message"}}. Invalid input is 400, unknown
// conversations 404, a busy controller or missing model 409, an unreachable
// Ollama 503 and a failing Ollama 502.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: ":8080"}, st, ctrl,
//		server.WithLogger(logger),
//		server.WithPinger(client),
//	)
//	if err := srv.ListenAndServe(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
