// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// maxRecentTurns bounds the per-session turn history.
const maxRecentTurns = 10

// UsageTracker accumulates token counts and generation time for the running
// session. Local inference is free, so unlike a cloud cost tracker there is no
// price table: tokens and time are the only budget.
type UsageTracker struct {
	mu      sync.RWMutex
	started time.Time
	byModel map[string]*TokenCount
	total   TokenCount
	turns   int
	elapsed time.Duration
	recent  []TurnUsage
}

// TokenCount tracks input/output tokens.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// TurnUsage records one completed chat turn.
type TurnUsage struct {
	TurnID         string        `json:"turn_id"`
	ConversationID int           `json:"conversation_id"`
	Model          string        `json:"model"`
	InputTokens    int           `json:"input_tokens"`
	OutputTokens   int           `json:"output_tokens"`
	Duration       time.Duration `json:"duration"`
	Timestamp      time.Time     `json:"timestamp"`
}

// UsageSummary is a point-in-time copy of the tracker.
type UsageSummary struct {
	Started time.Time             `json:"started"`
	Turns   int                   `json:"turns"`
	Total   TokenCount            `json:"total"`
	Elapsed time.Duration         `json:"elapsed"`
	ByModel map[string]TokenCount `json:"by_model"`
	Recent  []TurnUsage           `json:"recent"`
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		started: time.Now(),
		byModel: make(map[string]*TokenCount),
		recent:  make([]TurnUsage, 0, maxRecentTurns),
	}
}

// Record adds one turn.
func (u *UsageTracker) Record(turn TurnUsage) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	tc := u.byModel[turn.Model]
	if tc == nil {
		tc = &TokenCount{}
		u.byModel[turn.Model] = tc
	}
	tc.Input += turn.InputTokens
	tc.Output += turn.OutputTokens

	u.total.Input += turn.InputTokens
	u.total.Output += turn.OutputTokens
	u.turns++
	u.elapsed += turn.Duration

	u.recent = append(u.recent, turn)
	if len(u.recent) > maxRecentTurns {
		u.recent = u.recent[len(u.recent)-maxRecentTurns:]
	}
}

// Summary returns a copy of the current totals.
func (u *UsageTracker) Summary() UsageSummary {
	u.mu.RLock()
	defer u.mu.RUnlock()

	s := UsageSummary{
		Started: u.started,
		Turns:   u.turns,
		Total:   u.total,
		Elapsed: u.elapsed,
		ByModel: make(map[string]TokenCount, len(u.byModel)),
		Recent:  make([]TurnUsage, len(u.recent)),
	}
	for name, tc := range u.byModel {
		s.ByModel[name] = *tc
	}
	copy(s.Recent, u.recent)
	return s
}

// Models returns the model names seen so far, sorted.
func (s UsageSummary) Models() []string {
	names := make([]string, 0, len(s.ByModel))
	for name := range s.ByModel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TokensPerSecond is the session-wide generation rate.
func (s UsageSummary) TokensPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total.Output) / s.Elapsed.Seconds()
}
