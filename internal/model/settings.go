// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// GENERATION SETTINGS
// =============================================================================

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0

	MinMaxTokens = 1
	MaxMaxTokens = 8192

	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 2048
	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// ErrInvalidSettings is wrapped by every Settings validation failure.
var ErrInvalidSettings = errors.New("invalid generation settings")

// Settings are the generation parameters applied to every turn.
//
// Settings is a value type: the With* helpers return modified copies, so a
// turn always runs with the exact value it was handed.
type Settings struct {
	Temperature  float64 `json:"temperature" toml:"temperature"`
	MaxTokens    int     `json:"max_tokens" toml:"max_tokens"`
	SystemPrompt string  `json:"system_prompt" toml:"system_prompt"`

	// Streaming is accepted and carried around but requests are always sent
	// in full-response mode.
	Streaming bool `json:"streaming" toml:"streaming"`
}

// DefaultSettings returns the settings a fresh client starts with.
func DefaultSettings() Settings {
	return Settings{
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: DefaultSystemPrompt,
		Streaming:    true,
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	if math.IsNaN(s.Temperature) || s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [%.1f, %.1f]",
			ErrInvalidSettings, s.Temperature, MinTemperature, MaxTemperature)
	}
	if s.MaxTokens < MinMaxTokens || s.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("%w: max tokens %d outside [%d, %d]",
			ErrInvalidSettings, s.MaxTokens, MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// Clamp returns a copy with every numeric field forced into range.
func (s Settings) Clamp() Settings {
	if math.IsNaN(s.Temperature) {
		s.Temperature = DefaultTemperature
	}
	if s.Temperature < MinTemperature {
		s.Temperature = MinTemperature
	}
	if s.Temperature > MaxTemperature {
		s.Temperature = MaxTemperature
	}
	if s.MaxTokens < MinMaxTokens {
		s.MaxTokens = MinMaxTokens
	}
	if s.MaxTokens > MaxMaxTokens {
		s.MaxTokens = MaxMaxTokens
	}
	return s
}

// WithTemperature returns a copy with the temperature replaced.
func (s Settings) WithTemperature(t float64) Settings {
	s.Temperature = t
	return s
}

// WithMaxTokens returns a copy with the max token count replaced.
func (s Settings) WithMaxTokens(n int) Settings {
	s.MaxTokens = n
	return s
}

// WithSystemPrompt returns a copy with the system prompt replaced.
func (s Settings) WithSystemPrompt(p string) Settings {
	s.SystemPrompt = p
	return s
}

// WithStreaming returns a copy with the streaming flag replaced.
func (s Settings) WithStreaming(on bool) Settings {
	s.Streaming = on
	return s
}
