// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides tracing and token usage accounting for chat turns.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	serviceName = "ollama-chat"

	// TracerName is the instrumentation scope for every span this program opens.
	TracerName = "github.com/jeranaias/ollama-chat"
)

// Config holds the configuration for telemetry.
type Config struct {
	Enabled bool

	// Endpoint is the OTLP/HTTP collector, as host:port or a full URL.
	Endpoint string

	// Insecure sends spans over plain HTTP.
	Insecure bool

	// ServiceVersion is reported as service.version.
	ServiceVersion string
}

// Provider owns the tracer provider. A disabled Provider hands out a no-op
// tracer so callers never branch on whether tracing is on.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	logger *zap.Logger
}

// NewProvider creates a new telemetry provider.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		logger.Debug("telemetry disabled")
		return &Provider{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			logger: logger,
		}, nil
	}

	opts := []otlptracehttp.Option{}
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	p := NewProviderWithExporter(exporter, res, logger)
	otel.SetTracerProvider(p.tp)
	logger.Info("telemetry enabled", zap.String("endpoint", cfg.Endpoint))
	return p, nil
}

// NewProviderWithExporter builds an enabled provider around exp. Tests pass
// an in-memory exporter here.
func NewProviderWithExporter(exp sdktrace.SpanExporter, res *resource.Resource, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []sdktrace.TracerProviderOption{sdktrace.WithBatcher(exp)}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(TracerName),
		logger: logger,
	}
}

// Tracer returns the tracer components open spans with.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown flushes pending spans. It is a no-op when telemetry is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.logger.Debug("shutting down telemetry provider")
	return p.tp.Shutdown(ctx)
}

// NewTurnID generates a new turn UUID.
func NewTurnID() string {
	return uuid.New().String()
}
