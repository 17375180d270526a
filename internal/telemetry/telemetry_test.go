// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{}, nil)
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	_, span := p.Tracer().Start(context.Background(), "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid(), "disabled tracer must not produce real spans")
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProviderWithExporter_ExportsOnShutdown(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p := NewProviderWithExporter(exp, nil, nil)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "chat.submit_turn")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "chat.submit_turn", spans[0].Name)
}

func TestNewTurnID(t *testing.T) {
	a, b := NewTurnID(), NewTurnID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestUsageTracker(t *testing.T) {
	u := NewUsageTracker()
	u.Record(TurnUsage{Model: "llama3.2", InputTokens: 10, OutputTokens: 40, Duration: 2 * time.Second})
	u.Record(TurnUsage{Model: "qwen2.5", InputTokens: 5, OutputTokens: 20, Duration: 2 * time.Second})
	u.Record(TurnUsage{Model: "llama3.2", InputTokens: 1, OutputTokens: 0})

	s := u.Summary()
	assert.Equal(t, 3, s.Turns)
	assert.Equal(t, TokenCount{Input: 16, Output: 60}, s.Total)
	assert.Equal(t, TokenCount{Input: 11, Output: 40}, s.ByModel["llama3.2"])
	assert.Equal(t, []string{"llama3.2", "qwen2.5"}, s.Models())
	assert.InDelta(t, 15.0, s.TokensPerSecond(), 0.001)
	assert.Len(t, s.Recent, 3)
	assert.False(t, s.Recent[0].Timestamp.IsZero())
}

func TestUsageTracker_RecentIsBounded(t *testing.T) {
	u := NewUsageTracker()
	for i := 0; i < maxRecentTurns+5; i++ {
		u.Record(TurnUsage{ConversationID: i, Model: "m"})
	}

	s := u.Summary()
	require.Len(t, s.Recent, maxRecentTurns)
	assert.Equal(t, 5, s.Recent[0].ConversationID, "oldest turns fall off first")

	// Summary is a copy.
	s.Recent[0].Model = "changed"
	assert.Equal(t, "m", u.Summary().Recent[0].Model)
}
