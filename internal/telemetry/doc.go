// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides tracing and token usage accounting for chat turns.
//
// # Key Types
//
//   - Provider: OpenTelemetry tracer provider, OTLP/HTTP export or no-op
//   - UsageTracker: session token counts per model
//   - TurnUsage: one completed turn
//
// # Usage
//
//	p, err := telemetry.NewProvider(ctx, telemetry.Config{
//	    Enabled:  true,
//	    Endpoint: "localhost:4318",
//	    Insecure: true,
//	}, logger)
//	defer p.Shutdown(context.Background())
//
//	ctx, span := p.Tracer().Start(ctx, "chat.submit_turn")
//	defer span.End()
//
// # Privacy
//
// Spans and usage records carry IDs, model names and counts. Message content
// is never recorded.
package telemetry
