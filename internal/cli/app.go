// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Builds the shared runtime (config, logger, tracing, store and
// chat controller) that every chat-capable command uses.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/logging"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
	"github.com/jeranaias/ollama-chat/internal/telemetry"
)

// logTarget picks where log output goes for a command.
type logTarget int

const (
	// logToFile keeps log lines off a terminal the command draws on.
	logToFile logTarget = iota
	// logToStderr is for the server and one-shot commands.
	logToStderr
)

// app is everything a command needs to run chat turns.
type app struct {
	cfg     *config.Config
	cfgPath string

	logger    *zap.Logger
	telemetry *telemetry.Provider

	client *ollama.Client
	store  *store.Store
	usage  *telemetry.UsageTracker
	ctrl   *chat.Controller
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig reads the config file named by --config (or the default path)
// and applies the global flag overrides on top.
func loadConfig(opts *globalOptions) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, "", err
		}
		path = p
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}

	if opts.logLevel != "" {
		if !logging.ValidLevel(opts.logLevel) {
			return nil, path, &ValidationError{
				Field:   "log-level",
				Value:   opts.logLevel,
				Reason:  "unknown level",
				Example: "--log-level debug",
			}
		}
		cfg.Log.Level = strings.ToLower(opts.logLevel)
	}
	if opts.url != "" {
		cfg.Ollama.URL = opts.url
	}
	if opts.model != "" {
		cfg.Ollama.DefaultModel = opts.model
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, path, nil
}

// =============================================================================
// APP LIFECYCLE
// =============================================================================

// newApp loads configuration and wires the runtime.
func newApp(ctx context.Context, opts *globalOptions, target logTarget) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging()
	if target == logToFile && logCfg.File == "" {
		logCfg.File = config.DefaultLogFile()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceVersion: Version,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:     cfg.Ollama.URL,
		Timeout:     cfg.Ollama.Timeout.Std(),
		PullTimeout: cfg.Ollama.PullTimeout.Std(),
	})

	st := store.New()
	usage := telemetry.NewUsageTracker()
	ctrl := chat.NewController(st, client,
		chat.WithLogger(logger.Named("chat")),
		chat.WithTracer(tp.Tracer()),
		chat.WithUsage(usage),
		chat.WithModel(cfg.Ollama.DefaultModel),
	)

	logger.Info("starting",
		zap.String("version", Version),
		zap.String("config", path),
		zap.String("ollama_url", cfg.Ollama.URL),
		zap.Bool("telemetry", tp.Enabled()),
	)

	return &app{
		cfg:       cfg,
		cfgPath:   path,
		logger:    logger,
		telemetry: tp,
		client:    client,
		store:     st,
		usage:     usage,
		ctrl:      ctrl,
	}, nil
}

// Close flushes traces and logs.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// saveSettings persists generation settings changed from the UI.
func (a *app) saveSettings(s model.Settings) error {
	a.cfg.SetSettings(s)
	if err := config.SaveTOML(a.cfg, a.cfgPath); err != nil {
		a.logger.Warn("settings not saved", zap.Error(err))
		return err
	}
	a.logger.Info("settings saved", zap.String("path", a.cfgPath))
	return nil
}
