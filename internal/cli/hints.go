// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// hints.go - Actionable suggestions printed under command errors.

package cli

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// hintedError carries suggestions worked out where the error happened.
type hintedError struct {
	err   error
	hints []string
}

func (e *hintedError) Error() string { return e.err.Error() }
func (e *hintedError) Unwrap() error { return e.err }

// withModelSuggestion adds "Did you mean" when name is close to an
// installed model.
func withModelSuggestion(err error, name string, models []ollama.ModelInfo) error {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	hints := []string{"List installed models with /models"}
	if best, ok := util.Closest(name, names); ok {
		hints = append([]string{fmt.Sprintf("Did you mean %s?", best)}, hints...)
	}
	return &hintedError{err: err, hints: hints}
}

// suggestions returns what the user can try next, most specific first.
func suggestions(err error) []string {
	var hinted *hintedError
	if errors.As(err, &hinted) {
		return hinted.hints
	}

	var cfgErrs config.ValidateErrors
	switch {
	case ollama.IsNotRunning(err), chat.IsKind(err, chat.KindBackendUnavailable):
		return ollamaStartHints()
	case ollama.IsModelNotFound(err), errors.Is(err, chat.ErrUnknownModel):
		return []string{
			"Install it with: ollama-chat pull <model>",
			"List installed models: ollama-chat models",
		}
	case ollama.IsTimeout(err):
		return []string{
			"Large models can take a while to load; try again",
			"Raise ollama.timeout: ollama-chat config set ollama.timeout 10m",
		}
	case errors.Is(err, chat.ErrNoModelSelected):
		return []string{"Pick a model with --model NAME or ollama-chat config set ollama.default_model NAME"}
	case errors.As(err, &cfgErrs):
		return []string{"Edit the file shown by: ollama-chat config path"}
	}
	return nil
}

func ollamaStartHints() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			"Start Ollama: ollama serve",
			"Verify Ollama is in your PATH",
		}
	case "darwin":
		return []string{
			"Start Ollama: ollama serve",
			"Or launch Ollama.app from Applications",
		}
	default:
		return []string{
			"Start Ollama: ollama serve",
			"Or: sudo systemctl start ollama",
		}
	}
}
