// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs chat turns against the inference backend and folds the
// results back into the conversation store.
//
// A turn stores the user's message, sends the whole conversation (with the
// system prompt in front) to the selected model in one request and stores
// the reply. Only one turn may be outstanding across the process; a second
// submission while one is pending fails with ErrBusy.
//
// If the conversation is deleted while its turn is pending, the reply is
// dropped and Outcome.Discarded is set. The conversation is never recreated.
//
// # Key Types
//
//   - Controller: turn execution, model selection, listing and pulling
//   - Backend: the inference server (implemented by *ollama.Client)
//   - Outcome: a completed turn
//   - TurnError: a backend failure with its kind
//
// # Usage
//
//	ctrl := chat.NewController(st, ollama.NewClient(), chat.WithLogger(logger))
//	if _, err := ctrl.DiscoverModels(ctx); err != nil {
//	    // show the discovery banner
//	}
//	out, err := ctrl.SubmitTurn(ctx, st.CurrentID(), "Tell me a joke", model.DefaultSettings())
package chat
