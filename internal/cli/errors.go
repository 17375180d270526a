// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for ollama-chat commands.
//
// Commands always return errors and never print-and-return-nil. Execute
// displays the error once and maps it to an exit code.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates Ollama could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a model or conversation was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "models", "config")
	Action  string // Action being performed (e.g., "set", "pull")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{
		Field:   argName,
		Reason:  "required argument missing",
		Example: usage,
	}
}

// ErrUnsupportedFormat creates an error for unsupported export formats.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: fmt.Sprintf("supported formats: %v", supported),
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes an error for the user: a red "[ERROR]" line followed
// by suggestions. In JSON mode it writes the JSON error envelope instead.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, command, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", paint(w, ErrorStyle, "[ERROR]"), userMessage(err))
	printHints(w, err)
}

func printHints(w io.Writer, err error) {
	for _, h := range suggestions(err) {
		fmt.Fprintf(w, "  %s %s\n", paint(w, DimStyle, "->"), h)
	}
}

// DisplayErrorJSON writes the error envelope with the details under "data".
func DisplayErrorJSON(w io.Writer, command string, err error) {
	details := map[string]interface{}{
		"error_type": errorType(err),
	}
	if hints := suggestions(err); len(hints) > 0 {
		details["suggestions"] = hints
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var turnErr *chat.TurnError
	switch {
	case errors.As(err, &valErr):
		details["field"] = valErr.Field
		details["value"] = valErr.Value
		details["reason"] = valErr.Reason
		if valErr.Example != "" {
			details["example"] = valErr.Example
		}
	case errors.As(err, &turnErr):
		details["kind"] = turnErr.Kind.String()
		details["underlying_error"] = turnErr.Err.Error()
	case errors.As(err, &cmdErr):
		details["action"] = cmdErr.Action
		details["reason"] = cmdErr.Reason
		if cmdErr.Err != nil {
			details["underlying_error"] = cmdErr.Err.Error()
		}
	}

	resp := NewJSONErrorResponse(command, err)
	resp.Data = details
	_ = resp.Write(w)
}

// userMessage prefers the friendly text of backend failures over the
// wrapped chain.
func userMessage(err error) string {
	var turnErr *chat.TurnError
	if errors.As(err, &turnErr) {
		return turnErr.UserMessage()
	}
	return err.Error()
}

func errorType(err error) string {
	var valErr *ValidationError
	var cfgErrs config.ValidateErrors
	var turnErr *chat.TurnError
	var cmdErr *CommandError
	switch {
	case errors.As(err, &valErr):
		return "validation_error"
	case errors.As(err, &cfgErrs):
		return "config_error"
	case errors.As(err, &turnErr):
		return "backend_error"
	case errors.As(err, &cmdErr):
		return "command_error"
	}
	return "generic_error"
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) ||
		errors.Is(err, chat.ErrInvalidInput) ||
		errors.Is(err, chat.ErrNoModelSelected) {
		return ExitUsageError
	}

	var cfgErrs config.ValidateErrors
	var cfgErr config.ValidationError
	if errors.As(err, &cfgErrs) || errors.As(err, &cfgErr) {
		return ExitConfigError
	}

	if errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, chat.ErrUnknownModel) ||
		ollama.IsModelNotFound(err) {
		return ExitNotFoundError
	}

	if ollama.IsTimeout(err) {
		return ExitTimeoutError
	}

	if ollama.IsNotRunning(err) ||
		ollama.IsTransport(err) ||
		chat.IsKind(err, chat.KindBackendUnavailable) ||
		chat.IsKind(err, chat.KindModelDiscoveryFailed) {
		return ExitNetworkError
	}

	return ExitGeneralError
}
