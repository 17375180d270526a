// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// =============================================================================
// LOCAL VALIDATION ERRORS
// =============================================================================

// These are rejected before anything changes. Render layers are expected to
// prevent them (disabled submit, hidden delete) rather than show a banner.
var (
	// ErrInvalidInput means the message was blank or the settings were out of range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy means another turn is still in flight.
	ErrBusy = errors.New("a turn is already in flight")

	// ErrNoModelSelected means no model has been chosen yet.
	ErrNoModelSelected = errors.New("no model selected")

	// ErrUnknownModel means SelectModel named a model the server does not have.
	ErrUnknownModel = errors.New("model is not installed")
)

// =============================================================================
// BACKEND ERRORS
// =============================================================================

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	// KindBackendUnavailable: the server could not be reached, timed out or
	// the call was cancelled.
	KindBackendUnavailable ErrorKind = iota + 1

	// KindBackendError: the server answered with a failure status or a body
	// that could not be parsed.
	KindBackendError

	// KindModelDiscoveryFailed: listing installed models failed.
	KindModelDiscoveryFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindBackendError:
		return "backend_error"
	case KindModelDiscoveryFailed:
		return "model_discovery_failed"
	default:
		return "unknown"
	}
}

// TurnError is a user-visible backend failure. It never leaves the store in
// an invalid state and is never retried automatically.
type TurnError struct {
	Kind ErrorKind
	Op   string // "chat", "list", "pull"
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// UserMessage is the banner text for this failure.
func (e *TurnError) UserMessage() string {
	switch {
	case e.Kind == KindModelDiscoveryFailed:
		return "Failed to connect to Ollama. Make sure it's running."
	case e.Op == "pull":
		return "Failed to pull model."
	case e.Kind == KindBackendUnavailable:
		return "Could not reach Ollama. Please check your connection."
	default:
		return "Failed to get response from Ollama."
	}
}

// IsKind reports whether err is a *TurnError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TurnError
	return errors.As(err, &te) && te.Kind == kind
}

// classify maps a backend error to a TurnError kind.
func classify(op string, err error) *TurnError {
	kind := KindBackendError
	if ollama.IsTransport(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindBackendUnavailable
	}
	return &TurnError{Kind: kind, Op: op, Err: err}
}
